package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/morea-atlas/campaign-player/internal/catalog"
	"github.com/morea-atlas/campaign-player/internal/config"
)

var (
	importDriver    string
	importRoutes    string
	importCampaigns string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Seed the catalog database from routes.geojson and campaigns.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataCfg := config.GetDataConfig()
		src := catalog.FileSource{RoutesPath: dataCfg.RoutesPath, CampaignsPath: dataCfg.CampaignsPath}
		if importRoutes != "" {
			src.RoutesPath = importRoutes
		}
		if importCampaigns != "" {
			src.CampaignsPath = importCampaigns
		}

		cat, err := src.Load(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range cat.Check() {
			app.Logger.Warn("Catalog problem", "campaign", p.CampaignID, "clip", p.ClipIndex, "problem", p.Message)
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", p)
		}

		db, err := app.OpenDatabase(importDriver)
		if err != nil {
			return err
		}
		if err := catalog.Import(cmd.Context(), db.DB, cat, src.CampaignsPath); err != nil {
			return err
		}
		target := "postgres"
		if db.UsingSQLite {
			target = db.SqliteFilePath
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d routes and %d campaigns into %s\n",
			len(cat.Routes), len(cat.Campaigns), target)
		return nil
	},
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List routes with their great-circle length",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, _, err := app.LoadCatalog(cmd.Context())
		if err != nil {
			return err
		}
		return printRoutes(cmd.OutOrStdout(), cat)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report clips that reference unknown routes or units",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, _, err := app.LoadCatalog(cmd.Context())
		if err != nil {
			return err
		}
		problems := cat.Check()
		for _, p := range problems {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		if len(problems) > 0 {
			return fmt.Errorf("%d catalog problems", len(problems))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d campaigns ok\n", len(cat.Campaigns))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importDriver, "driver", "sqlite", "target database: sqlite or postgres")
	importCmd.Flags().StringVar(&importRoutes, "routes", "", "routes GeoJSON (default data.routesPath)")
	importCmd.Flags().StringVar(&importCampaigns, "campaigns", "", "campaigns JSON (default data.campaignsPath)")
	importCmd.Flags().String("sqlite", "", "SQLite file (default sqlite.path)")
	_ = viper.BindPFlag("sqlite.path", importCmd.Flags().Lookup("sqlite"))
}

func printRoutes(out io.Writer, cat *catalog.Catalog) error {
	idx := cat.RouteIndex()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tPOINTS\tLENGTH KM")
	for _, r := range cat.Routes {
		length, _ := idx.Length(r.ID)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\n", r.ID, r.Kind, len(r.Points), length)
	}
	return tw.Flush()
}
