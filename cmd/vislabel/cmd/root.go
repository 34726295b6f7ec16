package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/vislabel/internal/config"
	"github.com/MeKo-Tech/vislabel/internal/models"
	"github.com/MeKo-Tech/vislabel/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vislabel",
	Short: "Image classification demo with per-label learning content",
	Long: `vislabel classifies a photo with a pretrained ONNX model, ranks the
per-class probabilities and shows the learning content (texts, images and
videos) attached to the chosen label.

Examples:
  vislabel serve --port 8080
  vislabel classify photo.jpg
  vislabel classify photo.jpg --label hand --format json
  vislabel content hand
  vislabel video https://youtu.be/XERplfomyFs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/vislabel, /etc/vislabel)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing the ONNX model (can also be set via VISLABEL_MODELS_DIR environment variable)")
	rootCmd.PersistentFlags().String("model", models.DefaultModelFile, "model file, relative to --models-dir or absolute")
	rootCmd.PersistentFlags().String("labels", "", "labels file, one label per line")
	rootCmd.PersistentFlags().String("metadata", "", "model metadata JSON (classes, image size, mean/std)")
	rootCmd.PersistentFlags().String("content", "", "content YAML file (default is the built-in content)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))
	_ = viper.BindPFlag("model.path", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("model.labels_path", rootCmd.PersistentFlags().Lookup("labels"))
	_ = viper.BindPFlag("model.metadata_path", rootCmd.PersistentFlags().Lookup("metadata"))
	_ = viper.BindPFlag("content.path", rootCmd.PersistentFlags().Lookup("content"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}
		cfg := GetConfig()
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel(cfg),
		})))
	}
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration with the current flag values
// merged in.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}

	// Flags are bound after the first load, so unmarshal again.
	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig
	}
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
