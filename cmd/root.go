package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var verbose bool

// log is the CLI's shared logger, configured once in initConfig and used
// by every subcommand.
var log = logrus.New()

// RootCmd is the base command when klinker is called without any
// subcommands.
var RootCmd = &cobra.Command{
	Use:   "klinker",
	Short: "A linker for kOS KerbalObject (.ko) modules",
	Long: `klinker links one or more KerbalObject (.ko) object modules produced by
a kOS assembler or compiler into a single KerbalSimulation (.ksm) load
module, ready for the kOS CPU to execute or import as a shared library.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.klinker.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug-level link progress")
	RootCmd.AddCommand(linkCmd)
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".klinker")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	log.SetOutput(os.Stderr)
	if verbose || linkDebug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
}
