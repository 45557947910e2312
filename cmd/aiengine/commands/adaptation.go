package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aiengine/aiengine-go/pkg/aiengine"
)

var showDomain string

// AdaptationCmd is the parent command for adaptation state operations.
var AdaptationCmd = &cobra.Command{
	Use:   "adaptation",
	Short: "Inspect per-domain adaptation state",
}

var adaptationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a domain's adaptation state version and counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		version, samples, labeled := engine.AdaptationVersion(aiengine.DomainType(showDomain))
		output, _ := json.MarshalIndent(map[string]any{
			"domain":       showDomain,
			"version":      version,
			"sampleCount":  samples,
			"labeledCount": labeled,
		}, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

func init() {
	adaptationShowCmd.Flags().StringVarP(&showDomain, "domain", "d", "", "Domain to inspect")
	adaptationShowCmd.MarkFlagRequired("domain")
	addEngineFlags(adaptationShowCmd)

	AdaptationCmd.AddCommand(adaptationShowCmd)
}
