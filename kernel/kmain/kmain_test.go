package kmain

import (
	"testing"

	"github.com/DrakulaD3a/redos/kernel/irq"
)

type fakeMasker struct {
	primary, secondary uint8
	setCalls           int
}

func (m *fakeMasker) Masks() (uint8, uint8) { return m.primary, m.secondary }

func (m *fakeMasker) SetMasks(primary, secondary uint8) {
	m.primary, m.secondary = primary, secondary
	m.setCalls++
}

func TestMaskUnhandledLines(t *testing.T) {
	specs := []struct {
		cfg          irq.Config
		primary      uint8
		expPrimary   uint8
		secondary    uint8
		expSecondary uint8
	}{
		// keyboard disabled: line 1 gets masked, the timer is unmasked
		{irq.Config{Keyboard: false}, 0x00, 0x02, 0x00, 0x00},
		{irq.Config{Keyboard: false}, 0xff, 0xfe, 0xff, 0xff},
		// keyboard enabled: both lines are unmasked
		{irq.Config{Keyboard: true}, 0xff, 0xfc, 0xff, 0xff},
		{irq.Config{Keyboard: true, TimerTrace: true}, 0xb8, 0xb8, 0x8e, 0x8e},
	}

	for specIndex, spec := range specs {
		m := &fakeMasker{primary: spec.primary, secondary: spec.secondary}
		maskUnhandledLines(m, spec.cfg)

		if m.setCalls != 1 {
			t.Errorf("[spec %d] expected SetMasks to be called once; got %d", specIndex, m.setCalls)
		}

		if m.primary != spec.expPrimary {
			t.Errorf("[spec %d] expected primary mask to be 0x%x; got 0x%x", specIndex, spec.expPrimary, m.primary)
		}

		if m.secondary != spec.expSecondary {
			t.Errorf("[spec %d] expected secondary mask to be 0x%x; got 0x%x", specIndex, spec.expSecondary, m.secondary)
		}
	}
}
