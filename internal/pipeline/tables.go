package pipeline

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// Persisted table file names inside the data directory.
const (
	PriceHistoryFile       = "price_history.parquet"
	DateIndexFile          = "date_index.parquet"
	UtilizationSummaryFile = "utilization_summary.parquet"
)

// WriteTable writes rows to a Parquet file. Zstd keeps the fact tables small
// and decodes fast enough for full-table loads at query time.
func WriteTable[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	writer := parquet.NewGenericWriter[T](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("pricetrends", "1.0", ""),
	)

	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			file.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("close parquet writer %s: %w", path, err)
	}
	return file.Close()
}

// ReadTable loads a full Parquet table into memory in read batches.
func ReadTable[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[T](file)
	defer reader.Close()

	rows := make([]T, 0, reader.NumRows())
	buf := make([]T, 4096)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return rows, nil
}
