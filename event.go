package eventlogger

import (
	"github.com/srinathv31/eventlogger/config"
	"github.com/srinathv31/eventlogger/internal/model"
)

// Config is eventlogger's full configuration. It is a true alias of
// config.Config so callers who only need the root package can write
// eventlogger.Config without a second import, while config.Load and
// config.Default remain the construction path.
type Config = config.Config

// Event is an opaque, application-supplied record. The core never
// interprets its contents beyond two well-known keys, CorrelationIDField
// and ProcessNameField; every other field is passed through verbatim to
// the ingestion API. It is a true alias of model.Event so that internal
// packages (queue, sender, apiclient, spillover) can share the type
// without importing the root package.
type Event = model.Event

const (
	// CorrelationIDField is the event field the core reads to group the
	// events of one business process for logging purposes.
	CorrelationIDField = "correlation_id"
	// ProcessNameField is the event field the core reads to name the
	// process that produced an event, for logging purposes.
	ProcessNameField = "process_name"
)
