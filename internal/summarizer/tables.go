package summarizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The tool server returns records in two shapes depending on which
// tool produced them: nested (fetch_orders, get_available_drivers) or
// flattened (search_orders, search_drivers). Each record is normalized
// exactly once, here at the summarizer boundary, into one canonical
// struct per entity; neither shape leaks further into the system.

// orderRecord is the canonical order row.
type orderRecord struct {
	OrderID  string
	Customer string
	Address  string
	Status   string
	Priority string
	Driver   string
}

// driverRecord is the canonical driver row.
type driverRecord struct {
	DriverID string
	Name     string
	Phone    string
	Status   string
	Vehicle  string
	Location string
	Skills   string
}

// assignmentRecord is the canonical assignment row.
type assignmentRecord struct {
	AssignmentID string
	OrderID      string
	DriverID     string
	Status       string
	ETA          string
	Distance     string
}

func normalizeOrder(item map[string]any) orderRecord {
	rec := orderRecord{
		OrderID:  truncate(stringOr(item["order_id"], "N/A"), 22),
		Priority: "standard",
	}

	// Nested shape carries customer/delivery/details objects; the flat
	// shape spells the same fields out with prefixed names.
	if customer, ok := item["customer"].(map[string]any); ok {
		rec.Customer = stringOr(customer["name"], "")
	} else {
		rec.Customer = stringOr(item["customer_name"], "N/A")
	}
	if rec.Customer == "" {
		rec.Customer = "N/A"
	}
	rec.Customer = truncate(rec.Customer, 15)

	if delivery, ok := item["delivery"].(map[string]any); ok {
		rec.Address = stringOr(delivery["address"], "")
	} else {
		rec.Address = stringOr(item["delivery_address"], "N/A")
	}
	if rec.Address == "" {
		rec.Address = "N/A"
	}
	rec.Address = truncate(rec.Address, 25)

	if details, ok := item["details"].(map[string]any); ok {
		rec.Status = stringOr(details["status"], "N/A")
		rec.Priority = stringOr(details["priority"], "standard")
	} else {
		rec.Status = stringOr(item["status"], "N/A")
		rec.Priority = stringOr(item["priority"], "standard")
	}

	if driver := stringOr(item["assigned_driver_id"], ""); driver != "" {
		rec.Driver = lastN(driver, 8)
	} else {
		rec.Driver = "none"
	}

	return rec
}

func normalizeDriver(item map[string]any) driverRecord {
	rec := driverRecord{
		DriverID: truncate(stringOr(item["driver_id"], "N/A"), 15),
		Name:     truncate(stringOr(item["name"], "N/A"), 25),
		Status:   stringOr(item["status"], "N/A"),
	}

	if vehicle, ok := item["vehicle"].(map[string]any); ok {
		rec.Vehicle = stringOr(vehicle["type"], "N/A")
	} else {
		rec.Vehicle = stringOr(item["vehicle_type"], "N/A")
	}

	if contact, ok := item["contact"].(map[string]any); ok {
		rec.Phone = stringOr(contact["phone"], stringOr(item["phone"], "N/A"))
	} else {
		rec.Phone = stringOr(item["phone"], "N/A")
	}

	rec.Location = "N/A"
	if location, ok := item["location"].(map[string]any); ok {
		if addr := stringOr(location["address"], ""); addr != "" {
			rec.Location = truncate(addr, 20)
		} else if lat, latOK := location["latitude"].(float64); latOK {
			if lng, lngOK := location["longitude"].(float64); lngOK {
				rec.Location = fmt.Sprintf("%.4f,%.4f", lat, lng)
			}
		}
	}

	rec.Skills = "none"
	if skills, ok := item["skills"].([]any); ok && len(skills) > 0 {
		shown := skills
		if len(shown) > 2 {
			shown = shown[:2]
		}
		parts := make([]string, len(shown))
		for i, s := range shown {
			parts[i] = fmt.Sprint(s)
		}
		rec.Skills = strings.Join(parts, ",")
		if len(skills) > 2 {
			rec.Skills += "..."
		}
	}

	return rec
}

func normalizeAssignment(item map[string]any) assignmentRecord {
	rec := assignmentRecord{
		AssignmentID: truncate(stringOr(item["assignment_id"], "N/A"), 15),
		OrderID:      truncate(stringOr(item["order_id"], "N/A"), 15),
		DriverID:     truncate(stringOr(item["driver_id"], "N/A"), 15),
		Status:       stringOr(item["status"], "N/A"),
	}

	// ETA arrives as an ISO datetime; show just HH:MM.
	rec.ETA = stringOr(item["estimated_arrival"], "N/A")
	if rec.ETA != "N/A" && len(rec.ETA) > 10 {
		rec.ETA = rec.ETA[11:min(16, len(rec.ETA))]
	}

	var distance float64
	var haveDistance bool
	if route, ok := item["route"].(map[string]any); ok {
		distance, haveDistance = route["distance_meters"].(float64)
	} else {
		distance, haveDistance = item["route_distance_meters"].(float64)
	}
	if haveDistance && distance > 0 {
		rec.Distance = fmt.Sprintf("%.1fkm", distance/1000)
	} else {
		rec.Distance = "N/A"
	}

	return rec
}

func renderOrdersTable(items []any) string {
	var b strings.Builder
	b.WriteString("\n\nORDERS DATA:\n")
	b.WriteString("| Order ID | Customer | Address | Status | Priority | Driver |\n")
	b.WriteString("|----------|----------|---------|--------|----------|--------|\n")
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := normalizeOrder(m)
		fmt.Fprintf(&b, "| %s | %s | %s... | %s | %s | %s |\n",
			rec.OrderID, rec.Customer, rec.Address, rec.Status, rec.Priority, rec.Driver)
	}
	return b.String()
}

func renderDriversTable(items []any) string {
	var b strings.Builder
	b.WriteString("\n\nDRIVERS DATA:\n")
	b.WriteString("| Driver ID | Name | Phone | Status | Vehicle | Location | Skills |\n")
	b.WriteString("|-----------|------|-------|--------|---------|----------|--------|\n")
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := normalizeDriver(m)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			rec.DriverID, rec.Name, rec.Phone, rec.Status, rec.Vehicle, rec.Location, rec.Skills)
	}
	return b.String()
}

func renderAssignmentsTable(items []any) string {
	var b strings.Builder
	b.WriteString("\n\nASSIGNMENTS DATA:\n")
	b.WriteString("| Assignment ID | Order ID | Driver ID | Status | ETA | Distance |\n")
	b.WriteString("|---------------|----------|-----------|--------|-----|----------|\n")
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := normalizeAssignment(m)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			rec.AssignmentID, rec.OrderID, rec.DriverID, rec.Status, rec.ETA, rec.Distance)
	}
	return b.String()
}

// stringOr renders v as a string, or returns fallback when v is nil or
// renders empty.
func stringOr(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	s := fmt.Sprint(v)
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
