// pmwtrack-host streams motion events from a PMW3360 sensor sitting
// behind a serial debug bridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pmwtrack/bus"
	"pmwtrack/host/config"
	"pmwtrack/pmw3360"
)

var rootCmd = &cobra.Command{
	Use:   "pmwtrack-host",
	Short: "host tooling for a PMW3360 motion sensor behind a serial bridge",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "initialize the sensor and stream motion events to stdout",
	Long: `run brings the sensor up (reset, firmware upload, configuration)
and streams decoded motion samples until interrupted. Configuration is
loaded by the following order:
1. path specified in --config flag
2. path defined in PMWTRACK_CONFIG environment variable
3. default locations $HOME/.config/pmwtrack/config.yaml, /etc/pmwtrack/config.yaml, current directory
`,
	RunE: runE,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "report sensor identity and firmware revision",
	RunE:  infoE,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "print a configuration template to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := config.NewOpt()
		data, err := opt.Dump()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file path")
	cmd.Flags().StringP("device", "d", config.DefaultDevice, "serial bridge device")
	cmd.Flags().IntP("baud", "b", config.DefaultBaud, "serial baud rate (ignored for USB CDC)")
	cmd.Flags().Int("cpi", 800, "sensor resolution in counts per inch")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

func loadOptions(cmd *cobra.Command) (*config.Opt, error) {
	desc := config.NewDesc()
	if err := desc.Parse(cmd); err != nil {
		return nil, err
	}
	desc.PostParse()
	if err := config.Validate(&desc.Opt); err != nil {
		return nil, err
	}
	return &desc.Opt, nil
}

// connect opens the bridge and builds the device on top of it.
func connect(opt *config.Opt) (*bus.Bridge, *pmw3360.Device, error) {
	bridge, err := bus.OpenBridge(bus.BridgeConfig{
		Device: opt.Serial.Device,
		Baud:   opt.Serial.Baud,
	})
	if err != nil {
		return nil, nil, err
	}
	dev := pmw3360.New(bridge, bridge, bridge, opt.SensorConfig(), log.NewEntry(log.StandardLogger()))
	return bridge, dev, nil
}

func runE(cmd *cobra.Command, args []string) error {
	opt, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	bridge, dev, err := connect(opt)
	if err != nil {
		return err
	}
	defer bridge.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dev.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	events, err := dev.Stream(ctx, pmw3360.StreamOptions{
		Interval:     time.Duration(opt.Stream.IntervalUS) * time.Microsecond,
		UseInterrupt: opt.Stream.Mode == "interrupt",
	})
	if err != nil {
		return err
	}

	log.Infof("streaming at %d cpi, mode %s", dev.EffectiveCPI(), opt.Stream.Mode)
	for ev := range events {
		if ev.Err != nil {
			log.Warnf("read failed: %v", ev.Err)
			continue
		}
		if ev.Sample.Motion {
			fmt.Printf("dx=%-6d dy=%-6d squal=%d\n", ev.Sample.DX, ev.Sample.DY, ev.Sample.SQual)
		}
	}
	log.Infoln("stream closed")
	return nil
}

func infoE(cmd *cobra.Command, args []string) error {
	opt, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	bridge, dev, err := connect(opt)
	if err != nil {
		return err
	}
	defer bridge.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dev.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	fmt.Printf("state:     %s\n", dev.State())
	fmt.Printf("srom id:   %#02x\n", dev.SROMID())
	fmt.Printf("cpi:       %d\n", dev.EffectiveCPI())
	return nil
}

func main() {
	addCommonFlags(runCmd)
	addCommonFlags(infoCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(initCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Errorln(err)
		os.Exit(1)
	}
}
