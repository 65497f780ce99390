package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Global flags
	cfgFile string
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "image2gcode",
	Short: "Turn height maps into 3-axis milling toolpaths",
	Long: `image2gcode mills the surface described by a height map: a grayscale
image (white is the top of the stock, black is --depth below it), an SVG
drawing, or an STL mesh seen from above.

Examples:
  image2gcode convert --pixel-size 0.1 --depth 3 relief.png -o relief.ngc
  image2gcode convert --tool-shape v60 --tool-diameter 6 --entry arc logo.svg
  image2gcode render --width 800 part.stl -o part.png`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default ./image2gcode.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress output of dimensions, resolutions, and progress")
}

// loadConfig makes every flag of cmd settable from the config file and from
// IMAGE2GCODE_* environment variables. Flags given on the command line win.
func loadConfig(cmd *cobra.Command) error {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("image2gcode")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("IMAGE2GCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// push config values back into flags the user didn't set, so the flag
	// variables are the one place to read settings from
	var errs []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := cmd.Flags().Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("config %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
