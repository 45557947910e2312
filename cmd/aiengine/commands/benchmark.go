package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aiengine/aiengine-go/internal/infrastructure/metrics"
	"github.com/aiengine/aiengine-go/internal/shared"
	"github.com/aiengine/aiengine-go/pkg/aiengine"
)

// Benchmark command flags
var (
	benchmarkIterations  int
	benchmarkConcurrency int
	benchmarkOutput      string
)

// BenchmarkCmd measures pipeline throughput and per-stage latency.
var BenchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Run pipeline throughput benchmarks",
	Long: `Submit a stream of infrastructure anomaly-detection tasks with the
memory-backed store and report throughput plus per-stage latency
percentiles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sink := metrics.NewMemorySink()

		config := aiengine.DefaultConfig()
		config.Metrics = sink
		engine, err := aiengine.New(config)
		if err != nil {
			return err
		}
		defer engine.Close()

		fmt.Printf("Running %d iterations across %d workers...\n", benchmarkIterations, benchmarkConcurrency)

		start := time.Now()
		group, ctx := errgroup.WithContext(context.Background())
		group.SetLimit(benchmarkConcurrency)

		for i := 0; i < benchmarkIterations; i++ {
			group.Go(func() error {
				_, err := engine.Submit(ctx, aiengine.TaskRequest{
					Domain:   aiengine.DomainInfrastructure,
					TaskType: aiengine.TaskTypeAnomalyDetection,
					Input: map[string]any{
						"cpu_usage":    []float64{0.8, 0.85, 0.9},
						"memory_usage": []float64{0.7, 0.75, 0.8},
					},
				})
				return err
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
		elapsed := time.Since(start)

		report := buildReport(sink, benchmarkIterations, elapsed)
		if benchmarkOutput == "json" {
			output, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(output))
			return nil
		}

		fmt.Printf("Completed %d tasks in %s (%.1f tasks/sec)\n",
			report.Iterations, elapsed.Round(time.Millisecond), report.TasksPerSecond)
		for _, stage := range report.Stages {
			fmt.Printf("  %-8s p50=%-10s p95=%-10s max=%s\n",
				stage.Stage, stage.P50, stage.P95, stage.Max)
		}
		return nil
	},
}

type stageReport struct {
	Stage string `json:"stage"`
	P50   string `json:"p50"`
	P95   string `json:"p95"`
	Max   string `json:"max"`
}

type benchmarkReport struct {
	Iterations     int           `json:"iterations"`
	Elapsed        string        `json:"elapsed"`
	TasksPerSecond float64       `json:"tasksPerSecond"`
	Stages         []stageReport `json:"stages"`
}

func buildReport(sink *metrics.MemorySink, iterations int, elapsed time.Duration) *benchmarkReport {
	report := &benchmarkReport{
		Iterations:     iterations,
		Elapsed:        elapsed.String(),
		TasksPerSecond: float64(iterations) / elapsed.Seconds(),
	}

	for _, stage := range []shared.Stage{shared.StageEncode, shared.StagePredict, shared.StageExplain} {
		latencies := sink.StageLatencies(shared.DomainInfrastructure, stage)
		if len(latencies) == 0 {
			continue
		}
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		report.Stages = append(report.Stages, stageReport{
			Stage: string(stage),
			P50:   latencies[len(latencies)/2].String(),
			P95:   latencies[len(latencies)*95/100].String(),
			Max:   latencies[len(latencies)-1].String(),
		})
	}
	return report
}

func init() {
	BenchmarkCmd.Flags().IntVarP(&benchmarkIterations, "iterations", "i", 100, "Number of tasks to submit")
	BenchmarkCmd.Flags().IntVarP(&benchmarkConcurrency, "concurrency", "c", 4, "Concurrent workers")
	BenchmarkCmd.Flags().StringVarP(&benchmarkOutput, "output", "o", "text", "Output format (text|json)")
}
