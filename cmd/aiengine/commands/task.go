package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aiengine/aiengine-go/pkg/aiengine"
)

// Task command flags
var (
	taskSubmitID     string
	taskSubmitDomain string
	taskSubmitType   string
	taskSubmitInput  string
	taskSubmitFile   string
)

// TaskCmd is the parent command for task operations.
var TaskCmd = &cobra.Command{
	Use:   "task",
	Short: "Submit tasks and inspect their results",
	Long:  `Commands for submitting domain-tagged tasks and retrieving stored predictions and explanations.`,
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a task for processing",
	Long: `Submit one domain-tagged task through the full pipeline.

The input payload is a JSON object whose fields match the domain
profile's schema, passed inline with --input or from a file with
--input-file:

  aiengine task submit --domain infrastructure --type anomaly_detection \
    --input '{"cpu_usage":[0.8,0.85,0.9],"memory_usage":[0.7,0.75,0.8]}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readInput()
		if err != nil {
			return err
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		response, err := engine.Submit(context.Background(), aiengine.TaskRequest{
			TaskID:   taskSubmitID,
			Domain:   aiengine.DomainType(taskSubmitDomain),
			TaskType: aiengine.TaskType(taskSubmitType),
			Input:    payload,
		})
		if err != nil {
			return err
		}

		output, _ := json.MarshalIndent(response, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

var taskExplainCmd = &cobra.Command{
	Use:   "explain <task-id>",
	Short: "Retrieve the stored explanation for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		explanation, err := engine.Explain(context.Background(), args[0])
		if err != nil {
			return err
		}

		output, _ := json.MarshalIndent(explanation, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Retrieve the stored prediction for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		prediction, err := engine.Prediction(context.Background(), args[0])
		if err != nil {
			return err
		}

		output, _ := json.MarshalIndent(prediction, "", "  ")
		fmt.Println(string(output))
		return nil
	},
}

var (
	feedbackTaskID string
	feedbackLabel  string
)

var taskFeedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Report an observed outcome for a processed task",
	Long: `Report an observed outcome. The label is parsed as JSON when
possible (numbers, booleans) and taken as a plain string otherwise;
omitting the label records usage statistics only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		version, err := engine.RecordOutcomeSync(context.Background(), aiengine.OutcomeRequest{
			TaskID: feedbackTaskID,
			Label:  parseLabel(feedbackLabel),
		})
		if err != nil {
			return err
		}

		fmt.Printf("Adaptation state advanced to version %d\n", version)
		return nil
	},
}

func parseLabel(raw string) any {
	if raw == "" {
		return nil
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return value
	}
	return raw
}

func readInput() (map[string]any, error) {
	raw := []byte(taskSubmitInput)
	if taskSubmitFile != "" {
		var err error
		raw, err = os.ReadFile(taskSubmitFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("either --input or --input-file is required")
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("input is not a JSON object: %w", err)
	}
	return payload, nil
}

func init() {
	taskSubmitCmd.Flags().StringVar(&taskSubmitID, "task-id", "", "Task ID (assigned when empty)")
	taskSubmitCmd.Flags().StringVarP(&taskSubmitDomain, "domain", "d", "", "Task domain")
	taskSubmitCmd.Flags().StringVarP(&taskSubmitType, "type", "t", "", "Task type")
	taskSubmitCmd.Flags().StringVarP(&taskSubmitInput, "input", "i", "", "Input payload as a JSON object")
	taskSubmitCmd.Flags().StringVarP(&taskSubmitFile, "input-file", "f", "", "Read the input payload from a file")
	taskSubmitCmd.MarkFlagRequired("domain")
	taskSubmitCmd.MarkFlagRequired("type")

	taskFeedbackCmd.Flags().StringVar(&feedbackTaskID, "task-id", "", "Task the outcome belongs to")
	taskFeedbackCmd.Flags().StringVarP(&feedbackLabel, "label", "l", "", "Observed outcome label")
	taskFeedbackCmd.MarkFlagRequired("task-id")

	addEngineFlags(taskSubmitCmd)
	addEngineFlags(taskExplainCmd)
	addEngineFlags(taskShowCmd)
	addEngineFlags(taskFeedbackCmd)

	TaskCmd.AddCommand(taskSubmitCmd)
	TaskCmd.AddCommand(taskExplainCmd)
	TaskCmd.AddCommand(taskShowCmd)
	TaskCmd.AddCommand(taskFeedbackCmd)
}
