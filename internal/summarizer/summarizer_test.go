package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fleetmind/fleetmind-agent/internal/agent"
)

type stubOracle struct {
	reply   string
	err     error
	prompts []string
}

func (o *stubOracle) Generate(_ context.Context, prompt string) (string, error) {
	o.prompts = append(o.prompts, prompt)
	return o.reply, o.err
}

func (o *stubOracle) Ping(context.Context) error { return nil }

func orderStep(result any) agent.ExecutionStep {
	return agent.ExecutionStep{
		Step:      1,
		Tool:      "fetch_orders",
		Arguments: map[string]any{},
		Result:    result,
		Succeeded: true,
		Reasoning: "fetching the order list",
	}
}

func TestRender_NestedOrdersTable(t *testing.T) {
	steps := []agent.ExecutionStep{orderStep(map[string]any{
		"orders": []any{
			map[string]any{
				"order_id": "ORD-1",
				"customer": map[string]any{"name": "Ann"},
				"delivery": map[string]any{"address": "456 Oak Street"},
				"details":  map[string]any{"status": "pending", "priority": "urgent"},
			},
		},
	})}

	s := New(&stubOracle{reply: "Here is your order."}, nil)
	got := s.Render(context.Background(), "list orders", steps)

	// Record fields reach the user verbatim, not paraphrased by the
	// oracle.
	if !strings.Contains(got, "ORD-1") {
		t.Errorf("table missing order id:\n%s", got)
	}
	if !strings.Contains(got, "Ann") {
		t.Errorf("table missing customer name:\n%s", got)
	}
	if !strings.Contains(got, "ORDERS DATA:") {
		t.Errorf("missing table header:\n%s", got)
	}
	if !strings.Contains(got, "| pending | urgent |") {
		t.Errorf("missing status and priority cells:\n%s", got)
	}
	if !strings.HasPrefix(got, "Here is your order.") {
		t.Errorf("oracle prose missing or not first:\n%s", got)
	}
}

func TestRender_FlatOrdersShape(t *testing.T) {
	steps := []agent.ExecutionStep{orderStep(map[string]any{
		"orders": []any{
			map[string]any{
				"order_id":           "ORD-2",
				"customer_name":      "Bob",
				"delivery_address":   "9 Elm Road",
				"status":             "assigned",
				"assigned_driver_id": "driver-abcdef123456",
			},
		},
	})}

	s := New(&stubOracle{reply: "Found it."}, nil)
	got := s.Render(context.Background(), "find Bob's order", steps)

	if !strings.Contains(got, "ORD-2") || !strings.Contains(got, "Bob") {
		t.Errorf("flat-shape fields missing:\n%s", got)
	}
	// Priority defaults, driver id is shortened to its tail.
	if !strings.Contains(got, "| standard |") {
		t.Errorf("default priority missing:\n%s", got)
	}
	if !strings.Contains(got, "| ef123456 |") {
		t.Errorf("shortened driver id missing:\n%s", got)
	}
}

func TestRender_OracleFailureFallback(t *testing.T) {
	steps := []agent.ExecutionStep{orderStep(map[string]any{
		"orders": []any{
			map[string]any{"order_id": "ORD-3", "customer_name": "Cara"},
		},
	})}

	s := New(&stubOracle{err: errors.New("model overloaded")}, nil)
	got := s.Render(context.Background(), "list orders", steps)

	if !strings.HasPrefix(got, "Completed 1 operation(s).") {
		t.Errorf("fallback prose missing:\n%s", got)
	}
	// The table still renders; it never depends on the oracle.
	if !strings.Contains(got, "ORD-3") || !strings.Contains(got, "Cara") {
		t.Errorf("fallback lost the data table:\n%s", got)
	}
}

func TestRender_DriversTable(t *testing.T) {
	steps := []agent.ExecutionStep{{
		Step: 1,
		Tool: "get_available_drivers",
		Result: map[string]any{
			"drivers": []any{
				map[string]any{
					"driver_id": "DRV-9",
					"name":      "John Smith",
					"status":    "available",
					"vehicle":   map[string]any{"type": "van"},
					"contact":   map[string]any{"phone": "555-0101"},
					"location":  map[string]any{"latitude": 37.4224, "longitude": -122.0842},
					"skills":    []any{"refrigerated", "fragile", "oversized"},
				},
			},
		},
		Succeeded: true,
	}}

	s := New(&stubOracle{reply: "One driver is free."}, nil)
	got := s.Render(context.Background(), "who is available?", steps)

	if !strings.Contains(got, "DRIVERS DATA:") {
		t.Errorf("missing drivers table:\n%s", got)
	}
	if !strings.Contains(got, "| DRV-9 | John Smith | 555-0101 | available | van |") {
		t.Errorf("driver row malformed:\n%s", got)
	}
	if !strings.Contains(got, "37.4224,-122.0842") {
		t.Errorf("coordinate location missing:\n%s", got)
	}
	// Skills show the first two with an ellipsis for the rest.
	if !strings.Contains(got, "refrigerated,fragile...") {
		t.Errorf("skills rendering wrong:\n%s", got)
	}
}

func TestRender_AssignmentsTable(t *testing.T) {
	steps := []agent.ExecutionStep{{
		Step: 1,
		Tool: "fetch_assignments",
		Result: map[string]any{
			"assignments": []any{
				map[string]any{
					"assignment_id":     "ASG-100",
					"order_id":          "ORD-1",
					"driver_id":         "DRV-9",
					"status":            "en_route",
					"estimated_arrival": "2026-03-15T16:45:00Z",
					"route":             map[string]any{"distance_meters": 4200.0},
				},
			},
		},
		Succeeded: true,
	}}

	s := New(&stubOracle{reply: "On the way."}, nil)
	got := s.Render(context.Background(), "where is my delivery?", steps)

	if !strings.Contains(got, "ASSIGNMENTS DATA:") {
		t.Errorf("missing assignments table:\n%s", got)
	}
	// ETA shows just HH:MM, distance in kilometres.
	if !strings.Contains(got, "| 16:45 |") {
		t.Errorf("ETA not shortened:\n%s", got)
	}
	if !strings.Contains(got, "| 4.2km |") {
		t.Errorf("distance not converted:\n%s", got)
	}
}

func TestRender_NoTableForNonListResults(t *testing.T) {
	steps := []agent.ExecutionStep{{
		Step:      1,
		Tool:      "geocode_address",
		Result:    map[string]any{"latitude": 37.4224, "longitude": -122.0842},
		Succeeded: true,
		Reasoning: "resolving the address",
	}}

	oracle := &stubOracle{reply: "The address is at 37.4224, -122.0842."}
	s := New(oracle, nil)
	got := s.Render(context.Background(), "geocode this", steps)

	if strings.Contains(got, "DATA:") {
		t.Errorf("table rendered for a scalar result:\n%s", got)
	}
	if got != "The address is at 37.4224, -122.0842." {
		t.Errorf("got %q", got)
	}
	// The digest prompt carried the raw result for the oracle to quote.
	if len(oracle.prompts) != 1 || !strings.Contains(oracle.prompts[0], "37.4224") {
		t.Error("digest prompt missing the step result")
	}
}

func TestDigestSteps_ListDetection(t *testing.T) {
	tests := []struct {
		name      string
		result    any
		wantLine  string
		wantItems int
	}{
		{
			name:      "orders list",
			result:    map[string]any{"orders": []any{map[string]any{}, map[string]any{}}},
			wantLine:  "Found 2 orders",
			wantItems: 2,
		},
		{
			name:      "drivers list",
			result:    map[string]any{"drivers": []any{map[string]any{}}},
			wantLine:  "Found 1 drivers",
			wantItems: 1,
		},
		{
			name:      "bare array",
			result:    []any{1, 2, 3},
			wantLine:  "Found 3 items",
			wantItems: 3,
		},
		{
			name:      "nil result",
			result:    nil,
			wantLine:  "Result: ",
			wantItems: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, items := digestSteps([]agent.ExecutionStep{{
				Step: 1, Tool: "x", Result: tt.result,
			}})
			if !strings.Contains(text, tt.wantLine) {
				t.Errorf("digest = %q, want substring %q", text, tt.wantLine)
			}
			if len(items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(items), tt.wantItems)
			}
		})
	}
}

func TestNormalizeOrder_Truncation(t *testing.T) {
	rec := normalizeOrder(map[string]any{
		"order_id":         strings.Repeat("a", 40),
		"customer_name":    strings.Repeat("b", 40),
		"delivery_address": strings.Repeat("c", 40),
	})

	if len(rec.OrderID) != 22 {
		t.Errorf("OrderID length = %d, want 22", len(rec.OrderID))
	}
	if len(rec.Customer) != 15 {
		t.Errorf("Customer length = %d, want 15", len(rec.Customer))
	}
	if len(rec.Address) != 25 {
		t.Errorf("Address length = %d, want 25", len(rec.Address))
	}
	if rec.Driver != "none" {
		t.Errorf("Driver = %q, want %q for unassigned order", rec.Driver, "none")
	}
}
