package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gantry/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
	RunE: runVersion,
}

var (
	versionVerbose bool
	versionJSON    bool
)

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "show detailed version information")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output version information as JSON")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.GetInfo()

	if versionJSON {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal version info: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if versionVerbose {
		fmt.Println(info.String())
		return nil
	}

	fmt.Printf("gantry %s\n", info.Short())
	return nil
}
