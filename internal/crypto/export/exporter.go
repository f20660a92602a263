package export

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"cryptoetl/internal/crypto/market"

	"go.uber.org/zap"
)

const (
	filePrefix   = "crypto_snapshot_"
	stampLayout  = "20060102_150405" // second resolution, suffixed on collision
	csvExt       = ".csv"
	columnarExt  = ".msgpack"
	maxSuffixTry = 1000
)

// Columns is the schema shared by both export formats, in file order.
var Columns = []string{
	"id", "name", "symbol", "price", "market_cap",
	"percent_change_24h", "volume_24h", "tier", "captured_at",
}

// ExportError identifies the file that could not be written.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Files lists the pair written by one export.
type Files struct {
	CSV      string `json:"csv"`
	Columnar string `json:"columnar"`
	Records  int    `json:"records"`
}

// Exporter writes canonical batches to flat files. It never touches the database.
type Exporter struct {
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger}
}

// Export writes the batch as a CSV file and a msgpack columnar file under outputDir.
// Names derive from the batch capture time; an existing pair is never overwritten.
// On failure no partial file is left behind.
func (e *Exporter) Export(batch market.Batch, outputDir string) (*Files, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &ExportError{Path: outputDir, Err: err}
	}

	stem := filePrefix + batch.CapturedAt.UTC().Format(stampLayout)
	csvFile, colFile, err := reserve(outputDir, stem)
	if err != nil {
		return nil, err
	}
	files := &Files{CSV: csvFile.Name(), Columnar: colFile.Name(), Records: batch.Len()}

	if err := writeAndClose(csvFile, func(w io.Writer) error { return WriteCSV(w, batch.Records) }); err != nil {
		discard(colFile)
		_ = os.Remove(files.Columnar)
		return nil, &ExportError{Path: files.CSV, Err: err}
	}
	if err := writeAndClose(colFile, func(w io.Writer) error { return WriteColumnar(w, batch) }); err != nil {
		_ = os.Remove(files.CSV)
		return nil, &ExportError{Path: files.Columnar, Err: err}
	}

	e.logger.Info("snapshot exported",
		zap.String("csv", files.CSV),
		zap.String("columnar", files.Columnar),
		zap.Int("records", files.Records),
	)
	return files, nil
}

// reserve exclusively creates both files of the first free stem (stem, stem_1, stem_2, ...).
func reserve(dir, stem string) (*os.File, *os.File, error) {
	for i := 0; i < maxSuffixTry; i++ {
		name := stem
		if i > 0 {
			name += "_" + strconv.Itoa(i)
		}
		csvPath := filepath.Join(dir, name+csvExt)
		colPath := filepath.Join(dir, name+columnarExt)

		csvFile, err := createExclusive(csvPath)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, nil, &ExportError{Path: csvPath, Err: err}
		}

		colFile, err := createExclusive(colPath)
		if err != nil {
			discard(csvFile)
			_ = os.Remove(csvPath)
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return nil, nil, &ExportError{Path: colPath, Err: err}
		}
		return csvFile, colFile, nil
	}
	return nil, nil, &ExportError{
		Path: filepath.Join(dir, stem+csvExt),
		Err:  fmt.Errorf("no free file name after %d attempts", maxSuffixTry),
	}
}

func createExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// writeAndClose runs write against f and removes f when either step fails.
func writeAndClose(f *os.File, write func(io.Writer) error) error {
	if err := write(f); err != nil {
		discard(f)
		_ = os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return nil
}

func discard(f *os.File) {
	_ = f.Close()
}

// ReadFiles decodes both files of an export pair.
func ReadFiles(files Files) (csvRecords, columnarRecords []market.CanonicalRecord, err error) {
	csvFile, err := os.Open(files.CSV)
	if err != nil {
		return nil, nil, err
	}
	defer csvFile.Close()
	if csvRecords, err = ReadCSV(csvFile); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", files.CSV, err)
	}

	colFile, err := os.Open(files.Columnar)
	if err != nil {
		return nil, nil, err
	}
	defer colFile.Close()
	batch, err := ReadColumnar(colFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", files.Columnar, err)
	}
	return csvRecords, batch.Records, nil
}
