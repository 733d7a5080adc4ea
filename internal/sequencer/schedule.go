package sequencer

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"sequins/internal/log"
)

// ScheduleReset starts a cron that resets p on the given five-field spec.
// The caller stops the returned cron.
func ScheduleReset(spec string, p *Presenter) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		log.Info("scheduled pattern reset")
		if err := p.Reset(); err != nil {
			log.Error("scheduled reset failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sequencer: invalid reset schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
