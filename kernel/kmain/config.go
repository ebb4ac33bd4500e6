package kmain

import (
	"github.com/DrakulaD3a/redos/kernel/irq"
	"github.com/DrakulaD3a/redos/multiboot"
)

var (
	// cmdLineValueFn is mocked by tests.
	cmdLineValueFn = multiboot.BootCmdLineValue
)

// bootConfig holds the options parsed from the kernel command line.
type bootConfig struct {
	irq irq.Config

	// selfTest runs the boot self-tests and reports the result to QEMU.
	selfTest bool
}

// loadConfig parses the kernel command line. The following options are
// recognized; each accepts on/off:
//
//	timerTrace (default on)  print '.' on every timer tick
//	keyboard   (default on)  echo key presses
//	selftest   (default off) run the self-tests and exit QEMU
func loadConfig() bootConfig {
	return bootConfig{
		irq: irq.Config{
			TimerTrace: boolOption("timerTrace", true),
			Keyboard:   boolOption("keyboard", true),
		},
		selfTest: boolOption("selftest", false),
	}
}

// boolOption returns the value of a boolean command line option. A bare
// option name enables it; unrecognized values select the default.
func boolOption(key string, defaultValue bool) bool {
	value, found := cmdLineValueFn(key)
	if !found {
		return defaultValue
	}

	switch value {
	case key, "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	return defaultValue
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
