package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/ledger"
	"github.com/stockroom/stockroom/internal/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func widgetGroup() ledger.GroupedItem {
	batches := []ledger.Batch{
		{ID: "b1", Name: "Widget", Quantity: dec("1"), Price: dec("2"), PurchaseDate: "2024-01-01"},
		{ID: "b2", Name: "Widget", Quantity: dec("1"), Price: dec("3"), PurchaseDate: "2024-02-01"},
	}
	return ledger.Aggregate(batches)["Widget"]
}

func TestWriteOverviewCSVManagerColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOverviewCSV(&buf, []ledger.GroupedItem{widgetGroup()}, shared.RoleManager))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\uFEFF"), "export must start with a UTF-8 BOM")

	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(out, "\uFEFF"), "\r\n"), "\r\n")
	require.Equal(t, "Item Name,Total Quantity,Total Value,Average Price", lines[0])
	require.Equal(t, "Widget,2,5.00,2.5000", lines[1])
}

func TestWriteOverviewCSVWarehouseDropsPricing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOverviewCSV(&buf, []ledger.GroupedItem{widgetGroup()}, shared.RoleWarehouse))

	out := strings.TrimPrefix(buf.String(), "\uFEFF")
	require.NotContains(t, out, "Total Value")
	require.NotContains(t, out, "Average Price")
	require.Contains(t, out, "Widget,2\r\n")
}

func TestWriteOverviewCSVGuardsFormulas(t *testing.T) {
	g := ledger.Aggregate([]ledger.Batch{
		{ID: "x", Name: "=SUM(A1:A9)", Quantity: dec("1"), Price: dec("1"), PurchaseDate: "2024-01-01"},
	})["=SUM(A1:A9)"]

	var buf bytes.Buffer
	require.NoError(t, WriteOverviewCSV(&buf, []ledger.GroupedItem{g}, shared.RoleWarehouse))
	require.Contains(t, buf.String(), "'=SUM(A1:A9),1\r\n")
}

func TestWriteOverviewCSVQuotesCommasAndQuotes(t *testing.T) {
	g := ledger.Aggregate([]ledger.Batch{
		{ID: "x", Name: `Bolt, "hex"`, Quantity: dec("1"), Price: dec("1"), PurchaseDate: "2024-01-01"},
	})[`Bolt, "hex"`]

	var buf bytes.Buffer
	require.NoError(t, WriteOverviewCSV(&buf, []ledger.GroupedItem{g}, shared.RoleWarehouse))
	require.Contains(t, buf.String(), `"Bolt, ""hex"""`)
}

func TestFilename(t *testing.T) {
	require.Equal(t, "stock-report-full-2024-03-01.csv", Filename(shared.RoleManager, "2024-03-01"))
	require.Equal(t, "stock-report-redacted-2024-03-01.csv", Filename(shared.RoleWarehouse, "2024-03-01"))
}
