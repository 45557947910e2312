package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DomainsCmd is the parent command for domain registry operations.
var DomainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Domain registry commands",
}

var domainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered domain profiles",
	Long:  `List every (domain, task type) pair the engine can route, with its input schema, output head and explanation strategy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		profiles := engine.Profiles()
		if len(profiles) == 0 {
			fmt.Println("No domain profiles registered")
			return nil
		}

		output, _ := json.MarshalIndent(profiles, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

var domainsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a domain registry configuration",
	Long: `Build an engine from the given registry and report configuration
problems: malformed YAML, duplicate profiles, references to unregistered
heads or explanation strategies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		fmt.Printf("Registry OK: %d profiles\n", len(engine.Profiles()))
		return nil
	},
}

func init() {
	addEngineFlags(domainsListCmd)
	addEngineFlags(domainsValidateCmd)

	DomainsCmd.AddCommand(domainsListCmd)
	DomainsCmd.AddCommand(domainsValidateCmd)
}
