package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diva-fw/diva/cdc/serialport"
	cdcsim "github.com/diva-fw/diva/cdc/sim"
	"github.com/diva-fw/diva/clock"
	"github.com/diva-fw/diva/config"
	"github.com/diva-fw/diva/firmware"
	"github.com/diva-fw/diva/hal/sim"
	"github.com/diva-fw/diva/pkg"
)

var (
	runOpts = struct {
		profileOpts
		pressAfter time.Duration
	}{}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the control loop until interrupted or rebooted",
		Long: `Run the control loop against the simulated board. A host ticker raises the
timer interrupt every tick period. With the simulated USB backend the device
is plugged in and opened by a virtual host: stdin is sent to the device and
everything it transmits is copied to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := runOpts.load(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, runOpts.pressAfter, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
)

func init() {
	runOpts.register(runCmd.Flags())
	runCmd.Flags().DurationVar(&runOpts.pressAfter, "press-after", 0, "hold the reboot button after this long (0 = never)")
}

func run(ctx context.Context, cfg config.Config, pressAfter time.Duration, in io.Reader, out io.Writer) error {
	fwCfg := cfg.Firmware()
	board := sim.New(fwCfg.TimerLine)

	// Leave the host a share of each tick instead of spinning.
	idle := cfg.Board.TickPeriod / 8
	fwCfg.Idle = func() { time.Sleep(idle) }

	var (
		usb  firmware.USB
		host *cdcsim.Device
	)

	switch cfg.USB.Backend {
	case config.BackendSerial:
		port, err := serialport.Open(serialport.Config{
			Address:     cfg.USB.Serial.Address,
			LineCoding:  cfg.USB.Serial.LineCoding.LineCoding(),
			ReadTimeout: cfg.USB.Serial.ReadTimeout,
		}, nil)
		if err != nil {
			return err
		}
		defer port.Close()
		usb = port
	default:
		host = cdcsim.New(nil)
		host.AttachInterrupt(
			func() { board.Raise(fwCfg.USBLine) },
			func() { board.Clear(fwCfg.USBLine) },
		)
		usb = host
	}

	fw, err := firmware.New(board, usb, fwCfg)
	if err != nil {
		return err
	}
	if err := fw.Init(); err != nil {
		return err
	}

	board.OnReset(func(sentinel uint32) {
		pkg.LogInfo(pkg.ComponentSim, "reboot requested",
			"sentinel", fmt.Sprintf("0x%02x", sentinel),
			"uptime", clock.Duration(fw.Uptime(), cfg.Board.TickPeriod))
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.Board.TickPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				board.FireTimer()
				board.Deliver(fw.ISR)
				if host != nil {
					if data := host.Received(); len(data) > 0 {
						out.Write(data)
					}
				}
			}
		}
	}()

	if host != nil {
		host.Plug()
		host.SetLineState(true, true)
		board.Deliver(fw.ISR)
		chunks := readChunks(ctx, in)
		wg.Add(1)
		go func() {
			defer wg.Done()
			feed(ctx, host, func() { board.Deliver(fw.ISR) }, cfg.Board.TickPeriod, chunks)
		}()
	}

	if pressAfter > 0 {
		press := time.AfterFunc(pressAfter, func() { board.Press(fwCfg.HoldMask) })
		defer press.Stop()
	}

	err = fw.Run(ctx)
	cancel()
	wg.Wait()

	if errors.Is(err, pkg.ErrReset) {
		fmt.Fprintf(out, "rebooted after %v\n", clock.Duration(fw.Uptime(), cfg.Board.TickPeriod))
		return nil
	}
	return err
}

// readChunks reads in until it fails and sends each chunk on the returned
// channel, which is closed when reading stops. A Read blocked when ctx is
// done keeps the reader alive until it returns; nothing is sent after that.
func readChunks(ctx context.Context, in io.Reader) <-chan []byte {
	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, 64)
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return chunks
}

// feed sends chunks to the simulated device as host-to-device traffic,
// retrying while the device's receive buffer is full or it is not mounted.
// deliver runs the interrupt handler after each transfer. feed returns when
// chunks is closed or ctx is done, and never touches dev after ctx is done.
func feed(ctx context.Context, dev *cdcsim.Device, deliver func(), retry time.Duration, chunks <-chan []byte) {
	for {
		var data []byte
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			data = chunk
		}
		for len(data) > 0 {
			if ctx.Err() != nil {
				return
			}
			k := dev.Send(data)
			deliver()
			data = data[k:]
			if k == 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(retry):
				}
			}
		}
	}
}
