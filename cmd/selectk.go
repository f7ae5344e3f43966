package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clustertune/clustertune/tune"
)

var (
	// CLI flags for k selection
	selectDataset    string // dataset to cluster
	selectKMin       int    // inclusive lower bound of the candidate range
	selectKMax       int    // inclusive upper bound of the candidate range
	selectClean      bool   // delete non-winning candidate clusters
	selectLogEvals   bool   // log the evaluation of every candidate
	selectConfigPath string // optional cluster-args YAML
	selectOutputPath string // write the JSON result here instead of stdout
)

// selectkCmd runs the Pham-Dimov-Nguyen k search
var selectkCmd = &cobra.Command{
	Use:   "selectk",
	Short: "Choose the number of centroids by Pham-Dimov-Nguyen evaluation",
	Long: "Build one cluster per candidate k in [k-min, k-max], score each with the weighted " +
		"within-cluster sum-of-squares evaluation f(k), and return the cluster at the minimizing k.",
	Run: func(cmd *cobra.Command, args []string) {
		if selectDataset == "" {
			logrus.Fatalf("No dataset provided (--dataset)")
		}
		search, final := loadClusterArgs(selectConfigPath)

		svc := newService()
		res, err := tune.SelectK(context.Background(), svc, selectDataset, tune.SelectKOptions{
			KMin:           selectKMin,
			KMax:           selectKMax,
			SearchArgs:     search,
			FinalArgs:      final,
			Clean:          selectClean,
			LogEvaluations: selectLogEvals,
		})
		if err != nil {
			logrus.Fatalf("k selection failed: %v", err)
		}

		writeResult(res, selectOutputPath)
		logrus.Infof("Selected k=%d (cluster %s).", res.K, res.ClusterID)
	},
}

// init sets up selectk flags
func init() {
	selectkCmd.Flags().StringVar(&selectDataset, "dataset", "", "Dataset id to cluster")
	selectkCmd.Flags().IntVar(&selectKMin, "k-min", 2, "Smallest candidate k (inclusive)")
	selectkCmd.Flags().IntVar(&selectKMax, "k-max", 10, "Largest candidate k (inclusive)")
	selectkCmd.Flags().BoolVar(&selectClean, "clean", false, "Delete every candidate cluster except the returned one")
	selectkCmd.Flags().BoolVar(&selectLogEvals, "log-evaluations", false, "Log f(k) for every candidate")
	selectkCmd.Flags().StringVar(&selectConfigPath, "cluster-config", "", "YAML file with cluster build arguments")
	selectkCmd.Flags().StringVar(&selectOutputPath, "output", "", "Write the JSON result to this file")

	rootCmd.AddCommand(selectkCmd)
}
