// Package flowstore is the read-only view over the time-series store the
// ingestion job populates. It resolves capture-file records and aggregate
// counters by (router, slug); it never writes.
package flowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports that no stored record matches the slug/router pair.
var ErrNotFound = errors.New("no record for slug/router")

// CaptureFileRecord mirrors one row of the ingestion job's netflow_stats
// table: per-capture-file aggregate counters split by protocol.
type CaptureFileRecord struct {
	Router    string `json:"router"`
	FilePath  string `json:"filePath"`
	Timestamp int64  `json:"timestamp"`

	Flows      int64 `json:"flows"`
	FlowsTCP   int64 `json:"flowsTcp"`
	FlowsUDP   int64 `json:"flowsUdp"`
	FlowsICMP  int64 `json:"flowsIcmp"`
	FlowsOther int64 `json:"flowsOther"`

	Packets      int64 `json:"packets"`
	PacketsTCP   int64 `json:"packetsTcp"`
	PacketsUDP   int64 `json:"packetsUdp"`
	PacketsICMP  int64 `json:"packetsIcmp"`
	PacketsOther int64 `json:"packetsOther"`

	Bytes      int64 `json:"bytes"`
	BytesTCP   int64 `json:"bytesTcp"`
	BytesUDP   int64 `json:"bytesUdp"`
	BytesICMP  int64 `json:"bytesIcmp"`
	BytesOther int64 `json:"bytesOther"`

	FirstTimestamp   int64 `json:"firstTimestamp"`
	LastTimestamp    int64 `json:"lastTimestamp"`
	SequenceFailures int64 `json:"sequenceFailures"`
}

// CardinalityRecord is one per-time-bucket unique-address count, keyed by
// (router, granularity, bucket start).
type CardinalityRecord struct {
	Router          string `json:"router"`
	Granularity     string `json:"granularity"`
	BucketStart     int64  `json:"bucketStart"`
	BucketEnd       int64  `json:"bucketEnd"`
	SourceIPv4      int64  `json:"sourceIpv4"`
	DestinationIPv4 int64  `json:"destinationIpv4"`
	SourceIPv6      int64  `json:"sourceIpv6"`
	DestinationIPv6 int64  `json:"destinationIpv6"`
}

// Summary is a coarse overview of the store for the status command.
type Summary struct {
	Records      int64    `json:"records"`
	Routers      []string `json:"routers"`
	LatestBucket int64    `json:"latestBucket"`
}

// Store is an explicitly constructed read-only handle over the sqlite
// store: opened once at process start, closed at shutdown, safe for
// unlimited concurrent reads.
type Store struct {
	db *sql.DB
}

// Open opens the store at path in read-only mode. The file must already
// exist; this process never creates or migrates the schema — that is the
// ingestion collaborator's job.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store database: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LookupFilePath resolves the capture-file path for a slug and router by
// matching rows whose path ends with "nfcapd.<slug>". When several rows
// match across different path prefixes, the first by the store's natural
// order wins.
func (s *Store) LookupFilePath(ctx context.Context, slugKey, router string) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT file_path FROM netflow_stats
		 WHERE file_path LIKE ? AND router = ?
		 LIMIT 1`,
		"%nfcapd."+slugKey, router,
	).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: slug=%s router=%s", ErrNotFound, slugKey, router)
	}
	if err != nil {
		return "", fmt.Errorf("lookup file path: %w", err)
	}
	return path, nil
}

// LookupAggregates returns the aggregate counter rows for a slug, ordered
// by router. A non-empty router narrows the result to that router.
func (s *Store) LookupAggregates(ctx context.Context, slugKey, router string) ([]CaptureFileRecord, error) {
	query := `SELECT router, file_path, timestamp,
	                 flows, flows_tcp, flows_udp, flows_icmp, flows_other,
	                 packets, packets_tcp, packets_udp, packets_icmp, packets_other,
	                 bytes, bytes_tcp, bytes_udp, bytes_icmp, bytes_other,
	                 first_timestamp, last_timestamp, sequence_failures
	          FROM netflow_stats
	          WHERE file_path LIKE ?`
	args := []any{"%nfcapd." + slugKey}
	if router != "" {
		query += " AND router = ?"
		args = append(args, router)
	}
	query += " ORDER BY router"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup aggregates: %w", err)
	}
	defer rows.Close()

	var records []CaptureFileRecord
	for rows.Next() {
		var r CaptureFileRecord
		if err := rows.Scan(&r.Router, &r.FilePath, &r.Timestamp,
			&r.Flows, &r.FlowsTCP, &r.FlowsUDP, &r.FlowsICMP, &r.FlowsOther,
			&r.Packets, &r.PacketsTCP, &r.PacketsUDP, &r.PacketsICMP, &r.PacketsOther,
			&r.Bytes, &r.BytesTCP, &r.BytesUDP, &r.BytesICMP, &r.BytesOther,
			&r.FirstTimestamp, &r.LastTimestamp, &r.SequenceFailures); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup aggregates: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: slug=%s router=%s", ErrNotFound, slugKey, router)
	}
	return records, nil
}

// LookupCardinality returns the unique-address counts for one time bucket.
func (s *Store) LookupCardinality(ctx context.Context, router, granularity string, bucketStart int64) (CardinalityRecord, error) {
	var r CardinalityRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT router, granularity, bucket_start, bucket_end,
		        source_ipv4_cardinality, destination_ipv4_cardinality,
		        source_ipv6_cardinality, destination_ipv6_cardinality
		 FROM ip_cardinality
		 WHERE router = ? AND granularity = ? AND bucket_start = ?`,
		router, granularity, bucketStart,
	).Scan(&r.Router, &r.Granularity, &r.BucketStart, &r.BucketEnd,
		&r.SourceIPv4, &r.DestinationIPv4, &r.SourceIPv6, &r.DestinationIPv6)
	if errors.Is(err, sql.ErrNoRows) {
		return CardinalityRecord{}, fmt.Errorf("%w: router=%s granularity=%s bucket=%d",
			ErrNotFound, router, granularity, bucketStart)
	}
	if err != nil {
		return CardinalityRecord{}, fmt.Errorf("lookup cardinality: %w", err)
	}
	return r, nil
}

// Routers returns the distinct router names present in the store.
func (s *Store) Routers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT router FROM netflow_stats ORDER BY router")
	if err != nil {
		return nil, fmt.Errorf("list routers: %w", err)
	}
	defer rows.Close()

	var routers []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan router: %w", err)
		}
		routers = append(routers, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list routers: %w", err)
	}
	return routers, nil
}

// Summarize reports record count, routers, and the newest time bucket.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(MAX(timestamp), 0) FROM netflow_stats",
	).Scan(&sum.Records, &sum.LatestBucket)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize store: %w", err)
	}
	routers, err := s.Routers(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum.Routers = routers
	return sum, nil
}
