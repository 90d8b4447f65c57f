package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"beast1090/internal/app"
)

func newRootCommand(run func(app.Config) error) *cobra.Command {
	var config app.Config

	rootCmd := &cobra.Command{
		Use:   "beast1090",
		Short: "Beast feed position decoder",
		Long: `Beast feed position decoder.

Reads the Beast binary protocol from a dump1090-style TCP feed or from a
recorded stream, extracts ICAO addresses and coarse airborne positions and
writes them in BaseStation (SBS) format to daily rotated files.

Example usage:
  beast1090 --connect 127.0.0.1:30005 --position-type 0x33
  beast1090 --input capture.bin --framing doubled --metrics-addr :9108
  beast1090 --home-lat 51.5074 --home-lon -0.1278 --max-distance-km 10 --max-altitude-ft 5000`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion()
				return nil
			}
			return run(config)
		},
	}

	rootCmd.Flags().StringVarP(&config.Address, "connect", "c", app.DefaultAddress, "Beast TCP feed address (host:port)")
	rootCmd.Flags().StringVarP(&config.InputFile, "input", "i", "", "Read a recorded Beast stream from a file instead of connecting (- for stdin)")
	rootCmd.Flags().StringVar(&config.Framing, "framing", app.DefaultFraming, "In-frame sync byte handling: resync or doubled")
	rootCmd.Flags().Uint8Var(&config.PositionType, "position-type", app.DefaultPositionType, "Frame type byte accepted by the position interpreter")
	rootCmd.Flags().StringVarP(&config.LogDir, "log-dir", "l", app.DefaultLogDir, "Output directory for BaseStation files")
	rootCmd.Flags().BoolVarP(&config.LogRotateUTC, "utc", "u", true, "Use UTC for output rotation")
	rootCmd.Flags().IntVar(&config.RetainDays, "retain-days", 0, "Remove output files older than this many days at startup (0 keeps all)")
	rootCmd.Flags().StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.Flags().Float64Var(&config.HomeLat, "home-lat", 0, "Home latitude for proximity alerts")
	rootCmd.Flags().Float64Var(&config.HomeLon, "home-lon", 0, "Home longitude for proximity alerts")
	rootCmd.Flags().Float64Var(&config.MaxDistanceKm, "max-distance-km", 0, "Alert when an aircraft is within this distance of home (0 disables alerts)")
	rootCmd.Flags().Float64Var(&config.MaxAltitudeFt, "max-altitude-ft", app.DefaultMaxAltitudeFt, "Alert only for aircraft at or below this altitude")
	rootCmd.Flags().BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&config.ShowVersion, "version", false, "Show version information")

	return rootCmd
}

func main() {
	rootCmd := newRootCommand(func(config app.Config) error {
		return app.NewApplication(config).Start()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
