package stage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/larderlab/larder/pkg/errors"
)

// sqliteHeader is the 16-byte magic every SQLite database file starts with.
var sqliteHeader = []byte("SQLite format 3\x00")

// checkContracts verifies every declared output inside dir. A violated
// contract fails the stage before promotion: a stage that "succeeded" but
// produced a malformed or empty artifact must not publish.
func checkContracts(dir string, contracts []Contract) error {
	for _, c := range contracts {
		if err := checkContract(dir, c); err != nil {
			return err
		}
	}
	return nil
}

func checkContract(dir string, c Contract) error {
	path := filepath.Join(dir, c.Path)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) && c.Optional {
			return nil
		}
		return errors.Wrap(errors.CodeStageContract, err, "output %s missing", c.Path)
	}
	if info.Size() == 0 && c.Kind != ContractNDJSON {
		return errors.New(errors.CodeStageContract, "output %s is empty", c.Path)
	}

	switch c.Kind {
	case ContractFile:
		return nil
	case ContractJSON:
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(errors.CodeStageContract, err, "read %s", c.Path)
		}
		if !json.Valid(data) {
			return errors.New(errors.CodeStageContract, "output %s is not valid JSON", c.Path)
		}
		return nil
	case ContractNDJSON:
		return checkNDJSON(path, c)
	case ContractSQLite:
		return checkSQLiteHeader(path, c)
	default:
		return errors.New(errors.CodeStageContract, "output %s: unknown contract kind %q", c.Path, c.Kind)
	}
}

// checkNDJSON verifies every line is a JSON object and the record count
// meets the contract minimum.
func checkNDJSON(path string, c Contract) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(errors.CodeStageContract, err, "open %s", c.Path)
	}
	defer f.Close()

	records := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return errors.New(errors.CodeStageContract,
				"output %s line %d is not valid JSON", c.Path, records+1)
		}
		records++
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(errors.CodeStageContract, err, "scan %s", c.Path)
	}
	if records < c.MinRecords {
		return errors.New(errors.CodeStageContract,
			"output %s has %d records, contract requires at least %d", c.Path, records, c.MinRecords)
	}
	return nil
}

// checkSQLiteHeader verifies the file carries the SQLite magic. Deeper
// integrity (schema, row counts) is the packer's own test surface; the
// contract guards against a torn or non-database file being published.
func checkSQLiteHeader(path string, c Contract) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(errors.CodeStageContract, err, "open %s", c.Path)
	}
	defer f.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := f.Read(header); err != nil {
		return errors.Wrap(errors.CodeStageContract, err, "read %s header", c.Path)
	}
	if !bytes.Equal(header, sqliteHeader) {
		return errors.New(errors.CodeStageContract, "output %s is not a SQLite database", c.Path)
	}
	return nil
}
