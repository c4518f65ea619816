// server/cmd/api/points.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"spotmytrash-api-server/internal/garbage"
	"spotmytrash-api-server/internal/geo"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/stats"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pointsFlags struct {
	user    string
	orderBy string
	limit   int64
	watch   bool
}

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "List reported garbage points",
	RunE:  runPoints,
}

var nearbyFlags struct {
	lat, lon float64
	radius   float64
}

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Count garbage points within a radius of a location",
	RunE:  runNearby,
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all garbage points as a GeoJSON FeatureCollection",
	RunE:  runExport,
}

func init() {
	f := pointsCmd.Flags()
	f.StringVar(&pointsFlags.user, "user", "", "only points reported by this user ID")
	f.StringVar(&pointsFlags.orderBy, "order-by", "", "createdAt or status, descending")
	f.Int64Var(&pointsFlags.limit, "limit", 0, "maximum number of points, 0 for all")
	f.BoolVar(&pointsFlags.watch, "watch", false, "keep printing the list as it changes")

	nf := nearbyCmd.Flags()
	nf.Float64Var(&nearbyFlags.lat, "lat", 0, "latitude of the center")
	nf.Float64Var(&nearbyFlags.lon, "lon", 0, "longitude of the center")
	nf.Float64Var(&nearbyFlags.radius, "radius", 100, "radius in meters")
	_ = nearbyCmd.MarkFlagRequired("lat")
	_ = nearbyCmd.MarkFlagRequired("lon")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file, stdout when empty")

	rootCmd.AddCommand(pointsCmd, nearbyCmd, exportCmd)
}

func runPoints(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	repo := newRepository(cfg, st.Docs, pointsFlags.user, pointsFlags.orderBy, pointsFlags.limit)
	if !pointsFlags.watch {
		points, err := repo.FetchOnce(ctx)
		if err != nil {
			return err
		}
		latest, _ := garbage.Latest(points, repo.OrderField())
		return printPoints(cmd.OutOrStdout(), points, latest, stats.Compute(points))
	}

	failed := make(chan error, 1)
	stop, err := repo.SubscribeFunc(ctx, func(u garbage.Update) {
		fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n", u.At.Format(time.RFC3339))
		if err := printPoints(cmd.OutOrStdout(), u.Points, u.LatestID, u.Stats); err != nil {
			zap.L().Warn("print points", zap.Error(err))
		}
	}, func(err error) {
		failed <- err
	})
	if err != nil {
		return err
	}
	defer stop()

	select {
	case <-ctx.Done():
		return nil
	case err := <-failed:
		return err
	}
}

func runNearby(cmd *cobra.Command, args []string) error {
	if nearbyFlags.radius < 0 {
		return eris.New("--radius must not be negative")
	}
	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	points, err := newRepository(cfg, st.Docs, "", "", 0).FetchOnce(ctx)
	if err != nil {
		return err
	}
	center := models.NewGeoReading(nearbyFlags.lat, nearbyFlags.lon)
	within := geo.Within(center, nearbyFlags.radius, points)
	fmt.Fprintf(cmd.OutOrStdout(), "%d points within %.0fm of %s\n", len(within), nearbyFlags.radius, center)
	if nearest, dist, ok := geo.Nearest(center, points); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "nearest: %s at %.0fm\n", nearest.ID, dist)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	points, err := newRepository(cfg, st.Docs, "", "", 0).FetchOnce(ctx)
	if err != nil {
		return err
	}
	data, err := geo.MarshalFeatureCollection(points)
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", exportOut)
	}
	zap.L().Info("exported points", zap.Int("count", len(points)), zap.String("file", exportOut))
	return nil
}

func printPoints(w io.Writer, points []models.GarbagePoint, latest string, s stats.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tLOCATION\tCREATED\tUSER\t")
	for _, p := range points {
		marker := ""
		if p.ID == latest {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\t\n", p.ID, marker, p.Status, p.GPS, p.CreatedAt.Format(time.RFC3339), p.UserID)
	}
	fmt.Fprintf(tw, "total %d\tverified %d\tcleaned %d\tpending %d\t\n", s.Total, s.Verified, s.Cleaned, s.Pending)
	return tw.Flush()
}
