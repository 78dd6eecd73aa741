// Package storage loads aggregated records into PostgreSQL.
//
// PostgresSink implements the record sink contract on top of pgx. The
// header fixes the table columns (all text, plus run_id); records are
// buffered and loaded with the COPY protocol in batches.
package storage
