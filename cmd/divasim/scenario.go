package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cdcsim "github.com/diva-fw/diva/cdc/sim"
	"github.com/diva-fw/diva/config"
	"github.com/diva-fw/diva/firmware"
	"github.com/diva-fw/diva/hal/sim"
)

var (
	scenarioOpts profileOpts

	scenarioCmd = &cobra.Command{
		Use:   "scenario",
		Short: "Step through power-on, enumeration, greeting, echo and reboot",
		Long: `Run a fixed sequence against the simulated board and USB host, stepping the
timer one tick at a time, and print every indicator write and every byte the
device transmits. The output is deterministic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := scenarioOpts.load(cmd.Flags())
			if err != nil {
				return err
			}
			return scenario(cmd.OutOrStdout(), cfg)
		},
	}
)

func init() {
	scenarioOpts.register(scenarioCmd.Flags())
}

// rig is a firmware instance on a simulated board with a simulated host.
type rig struct {
	out   io.Writer
	board *sim.Board
	host  *cdcsim.Device
	fw    *firmware.Firmware
}

// step runs pending interrupts and one loop iteration, then prints what the
// device transmitted.
func (r *rig) step() bool {
	r.board.Deliver(r.fw.ISR)
	reset := r.fw.Poll()
	if data := r.host.Received(); len(data) > 0 {
		fmt.Fprintf(r.out, "t=%-5d tx %q\n", r.fw.Now(), data)
	}
	return reset
}

func (r *rig) tick(n int) {
	for i := 0; i < n; i++ {
		r.board.FireTimer()
		r.step()
	}
}

func (r *rig) status(label string) {
	b := r.fw.Blink()
	fmt.Fprintf(r.out, "t=%-5d %-10s state=%s period=%d connected=%v\n",
		r.fw.Now(), label, b.State(), b.Period(), r.host.Connected())
}

func scenario(out io.Writer, cfg config.Config) error {
	fwCfg := cfg.Firmware()
	r := &rig{
		out:   out,
		board: sim.New(fwCfg.TimerLine),
		host:  cdcsim.New(nil),
	}
	r.host.AttachInterrupt(
		func() { r.board.Raise(fwCfg.USBLine) },
		func() { r.board.Clear(fwCfg.USBLine) },
	)

	fw, err := firmware.New(r.board, r.host, fwCfg)
	if err != nil {
		return err
	}
	r.fw = fw
	if err := fw.Init(); err != nil {
		return err
	}

	r.board.OnIndicator(func(on bool) {
		fmt.Fprintf(out, "t=%-5d led %v\n", fw.Now(), on)
	})
	r.board.OnReset(func(sentinel uint32) {
		fmt.Fprintf(out, "t=%-5d reboot 0x%02x\n", fw.Now(), sentinel)
	})

	r.status("power-on")
	r.tick(500)

	r.host.Plug()
	r.step()
	r.host.SetLineState(true, true)
	r.step()
	r.status("mounted")

	r.tick(2000)

	r.host.Send([]byte("ping"))
	r.step()

	r.host.SuspendBus(false)
	r.step()
	r.status("suspended")
	r.tick(2500)

	r.host.ResumeBus()
	r.step()
	r.status("resumed")

	r.host.Unplug()
	r.step()
	r.status("unplugged")

	r.board.Press(fwCfg.HoldMask)
	if !r.step() {
		return fmt.Errorf("scenario: button hold did not reboot")
	}
	return nil
}
