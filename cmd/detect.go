package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clustertune/clustertune/tune"
)

var (
	// CLI flags for anomaly detection
	detectDataset       string  // dataset to analyze
	detectK             int     // centroids per round
	detectL             int     // anomaly candidates per round
	detectThreshold     float64 // Jaccard similarity needed to stop early
	detectMaxIterations int     // hard round budget
	detectConfigPath    string  // optional cluster-args YAML
	detectOutputPath    string  // write the JSON result here instead of stdout
)

// detectCmd runs the k-means minus-minus anomaly loop
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Find the most centroid-distant rows by iterative reclustering",
	Long: "Repeatedly cluster the dataset, extract the l most centroid-distant rows as anomaly " +
		"candidates, filter them out, and recluster, until consecutive candidate sets agree " +
		"(Jaccard similarity above the threshold) or the iteration budget runs out.",
	Run: func(cmd *cobra.Command, args []string) {
		if detectDataset == "" {
			logrus.Fatalf("No dataset provided (--dataset)")
		}
		search, _ := loadClusterArgs(detectConfigPath)

		svc := newService()
		res, err := tune.DetectAnomalies(context.Background(), svc, detectDataset, tune.AnomalyOptions{
			K:                detectK,
			L:                detectL,
			JaccardThreshold: detectThreshold,
			MaxIterations:    detectMaxIterations,
			ClusterArgs:      search,
		})
		if err != nil {
			logrus.Fatalf("Anomaly detection failed: %v", err)
		}

		writeResult(res, detectOutputPath)
		logrus.Infof("Anomaly detection complete after %d rounds.", len(res.SimilarityHistory))
	},
}

// init sets up detect flags
func init() {
	detectCmd.Flags().StringVar(&detectDataset, "dataset", "", "Dataset id to analyze")
	detectCmd.Flags().IntVar(&detectK, "k", 8, "Number of centroids per round")
	detectCmd.Flags().IntVar(&detectL, "l", 10, "Number of anomaly candidates per round")
	detectCmd.Flags().Float64Var(&detectThreshold, "jaccard-threshold", 0.95, "Similarity of consecutive candidate sets needed to stop, in [0,1]")
	detectCmd.Flags().IntVar(&detectMaxIterations, "max-iterations", 10, "Maximum number of rounds")
	detectCmd.Flags().StringVar(&detectConfigPath, "cluster-config", "", "YAML file with cluster build arguments")
	detectCmd.Flags().StringVar(&detectOutputPath, "output", "", "Write the JSON result to this file")

	rootCmd.AddCommand(detectCmd)
}
