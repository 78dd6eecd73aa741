// Package dataprocessing extracts sentinel-bounded tables from decoded
// workbooks and aggregates them into one record stream.
//
// A Locator makes a single forward pass over one document's rows and
// gives every row a RowRole. The table starts at the row whose first cell
// is exactly the data-start sentinel ("Hole Number"); the row after it
// holds sub-headers, and data rows follow until the data-end sentinel
// ("Sub-Totals"). Rows with an empty first cell are never data, and the
// remarks sentinel ("Remarks") is excluded according to the RemarksMode.
//
// The Aggregator runs a fresh Locator per document in listing order. The
// first document carrying a header fixes the run's HeaderSpec, which is
// written once before any record. Every data row is emitted as its cells'
// display text followed by the document's provenance value:
//
//	agg := dataprocessing.NewAggregator(lister, decoder,
//	    dataprocessing.DefaultAggregatorOptions(), logger)
//	report, err := agg.Run(ctx, "/data/holes", sink)
//
// Documents that cannot be decoded are skipped and listed in the report.
// An unreadable directory or a failing sink ends the run.
package dataprocessing
