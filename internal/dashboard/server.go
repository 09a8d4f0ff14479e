package dashboard

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/subpirate/analyzer/internal/domain"
)

// Handler renders the analysis dashboard from a live queue snapshot.
func Handler(snapshot func() []domain.Task) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks := snapshot()

		// 1. Queue composition
		pie := charts.NewPie()
		pie.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{Title: "Task Status"}),
			charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		)

		statusCounts := make(map[string]int)
		for _, t := range tasks {
			statusCounts[string(t.Status)]++
		}

		var pieItems []opts.PieData
		for k, v := range statusCounts {
			pieItems = append(pieItems, opts.PieData{Name: k, Value: v})
		}
		pie.AddSeries("Tasks", pieItems)

		// 2. Marketing friendliness per analyzed subreddit
		scoreBar := charts.NewBar()
		scoreBar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Marketing Friendliness"}))

		completed := completedTasks(tasks)
		var scoreX []string
		var scoreY []opts.BarData
		for _, t := range completed {
			scoreX = append(scoreX, t.Subreddit)
			scoreY = append(scoreY, opts.BarData{Value: t.Result.Analysis.MarketingFriendliness.Score})
		}
		scoreBar.SetXAxis(scoreX).AddSeries("Score", scoreY)

		pie.Render(w)
		scoreBar.Render(w)

		// 3. Posting activity by hour for the most recent analysis
		if len(completed) > 0 {
			latest := completed[len(completed)-1]
			hourBar := charts.NewBar()
			hourBar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
				Title: "Posts per Hour (UTC): r/" + latest.Subreddit,
			}))

			var perHour [24]int
			for _, p := range latest.Result.Posts {
				perHour[time.Unix(int64(p.CreatedUTC), 0).UTC().Hour()]++
			}
			var hourX []string
			var hourY []opts.BarData
			for h := 0; h < 24; h++ {
				hourX = append(hourX, fmt.Sprintf("%02d:00", h))
				hourY = append(hourY, opts.BarData{Value: perHour[h]})
			}
			hourBar.SetXAxis(hourX).AddSeries("Posts", hourY)
			hourBar.Render(w)
		}
	}
}

func completedTasks(tasks []domain.Task) []domain.Task {
	var out []domain.Task
	for _, t := range tasks {
		if t.Status == domain.StatusCompleted && t.Result != nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CompletedAt == nil || out[j].CompletedAt == nil {
			return false
		}
		return out[i].CompletedAt.Before(*out[j].CompletedAt)
	})
	return out
}
