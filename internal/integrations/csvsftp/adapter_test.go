package csvsftp

import (
	"testing"

	"wavesched/internal/integrations"
)

func TestParseCSVGroupsLinesByOrder(t *testing.T) {
	data := "externalRef,customerRef,priority,deadline,skuRef,quantity\n" +
		"ORD-1,CUST-9,2,2026-03-02T18:00:00Z,SKU-A,3\n" +
		"ORD-1,CUST-9,2,2026-03-02T18:00:00Z,SKU-B,1\n" +
		"ORD-2,CUST-4,1,2026-03-02T12:00:00Z,SKU-A,5\n"

	orders, err := Adapter{}.ParseCSV(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("want 2 orders, got %d", len(orders))
	}
	if len(orders[0].Items) != 2 || orders[0].ExternalRef != "ORD-1" {
		t.Fatalf("bad first order: %+v", orders[0])
	}
	if orders[1].Priority != 1 || orders[1].Items[0].Quantity != 5 {
		t.Fatalf("bad second order: %+v", orders[1])
	}
}

func TestMapStatus(t *testing.T) {
	evt := Adapter{}.MapStatus(integrations.ExternalStatus{Code: "SHIPPED"})
	if evt.Type != "shipped" {
		t.Fatalf("want shipped, got %s", evt.Type)
	}
}
