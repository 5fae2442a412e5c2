package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
)

// Stats prints the request pipeline counters gathered this run.
func (a *App) Stats(ctx context.Context) error {
	families, err := a.metrics.Gather()
	if err != nil {
		return a.fail(ctx, "stats", err)
	}
	lines := formatCounters(families)
	if len(lines) == 0 {
		a.printf("No requests made yet\n")
		return nil
	}
	for _, l := range lines {
		a.printf("%s\n", l)
	}
	return nil
}

// formatCounters renders every counter sample as "name{k=v,...} value",
// sorted for stable output.
func formatCounters(families []*dto.MetricFamily) []string {
	var out []string
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		name := strings.TrimPrefix(mf.GetName(), "talentdir_client_")
		for _, m := range mf.GetMetric() {
			out = append(out, fmt.Sprintf("%s%s %g", name, labelString(m.GetLabel()), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(out)
	return out
}

func labelString(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, lp := range pairs {
		parts = append(parts, lp.GetName()+"="+lp.GetValue())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
