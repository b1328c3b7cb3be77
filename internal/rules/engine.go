package rules

import (
	"github.com/sirupsen/logrus"
	"github.com/solatis/ticketkeeper/internal/types"
)

// Engine holds the compiled ticket rules of one rule file, in file order.
type Engine struct {
	sections []*Section
	selector *Selector
	log      logrus.FieldLogger
}

// NewEngine creates an engine over sections. Order is preserved.
func NewEngine(sections []*Section, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		sections: sections,
		selector: NewSelector(log),
		log:      log,
	}
}

// Sections returns the rule sections in evaluation order.
func (e *Engine) Sections() []*Section {
	return e.sections
}

// Selector returns the selector used by the engine.
func (e *Engine) Selector() *Selector {
	return e.selector
}

// FirstMatch returns the first section that selects evt, or nil when none does.
// A section whose evaluation errors is logged and skipped.
func (e *Engine) FirstMatch(evt *types.Event) *Section {
	for _, sec := range e.sections {
		ok, err := e.selector.Selects(sec, evt)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"section": sec.Name,
				"evid":    evt.EvID,
			}).WithError(err).Error("rule evaluation failed, skipping section")
			continue
		}
		if ok {
			return sec
		}
	}
	return nil
}
