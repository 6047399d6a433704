package crash

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source column names in the TIMS exports.
const (
	ColCaseID   = "CASE_ID"
	ColDate     = "COLLISION_DATE"
	ColSeverity = "COLLISION_SEVERITY"
	ColPointX   = "POINT_X"
	ColPointY   = "POINT_Y"
	ColAge      = "VICTIM_AGE"
	ColRole     = "VICTIM_ROLE"
)

var (
	crashColumns  = []string{ColCaseID, ColDate, ColSeverity, ColPointX, ColPointY}
	victimColumns = []string{ColCaseID, ColAge, ColRole}
)

type crashRow struct {
	CaseID   string `csv:"CASE_ID"`
	Date     string `csv:"COLLISION_DATE"`
	Severity string `csv:"COLLISION_SEVERITY"`
	X        string `csv:"POINT_X"`
	Y        string `csv:"POINT_Y"`
}

type victimRow struct {
	CaseID string `csv:"CASE_ID"`
	Age    string `csv:"VICTIM_AGE"`
	Role   string `csv:"VICTIM_ROLE"`
}

// LoadCrashes reads the crashes CSV at path.
func LoadCrashes(path string) ([]Crash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "crash: open crashes")
	}
	defer f.Close() //nolint:errcheck

	crashes, err := ReadCrashes(f)
	if err != nil {
		return nil, eris.Wrapf(err, "load %s", path)
	}
	return crashes, nil
}

// LoadVictims reads the victims CSV at path.
func LoadVictims(path string) ([]Victim, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "crash: open victims")
	}
	defer f.Close() //nolint:errcheck

	victims, err := ReadVictims(f)
	if err != nil {
		return nil, eris.Wrapf(err, "load %s", path)
	}
	return victims, nil
}

// ReadCrashes decodes a crashes table, keeping only the case id, date, severity, and point
// columns. Blank coordinates are allowed; non-numeric ones are an error.
func ReadCrashes(r io.Reader) ([]Crash, error) {
	cr, dec, err := newDecoder(r, crashColumns)
	if err != nil {
		return nil, eris.Wrap(err, "crash: crashes header")
	}

	var crashes []Crash
	for {
		var row crashRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrap(err, "crash: decode crashes")
		}
		line, _ := cr.FieldPos(0)

		c := Crash{
			CaseID:   strings.TrimSpace(row.CaseID),
			Date:     strings.TrimSpace(row.Date),
			Severity: strings.TrimSpace(row.Severity),
		}
		if c.CaseID == "" {
			return nil, eris.Errorf("crash: line %d: blank %s", line, ColCaseID)
		}
		if c.X, err = parseOptionalFloat(row.X); err != nil {
			return nil, eris.Wrapf(err, "crash: line %d: %s", line, ColPointX)
		}
		if c.Y, err = parseOptionalFloat(row.Y); err != nil {
			return nil, eris.Wrapf(err, "crash: line %d: %s", line, ColPointY)
		}
		crashes = append(crashes, c)
	}

	return crashes, nil
}

// ReadVictims decodes a victims table, keeping only the case id, age, and role columns. Rows
// with a blank age are dropped: they can never be the youngest victim of a crash.
func ReadVictims(r io.Reader) ([]Victim, error) {
	cr, dec, err := newDecoder(r, victimColumns)
	if err != nil {
		return nil, eris.Wrap(err, "crash: victims header")
	}

	var victims []Victim
	var blankAge int
	for {
		var row victimRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrap(err, "crash: decode victims")
		}
		line, _ := cr.FieldPos(0)

		v := Victim{CaseID: strings.TrimSpace(row.CaseID)}
		if v.CaseID == "" {
			return nil, eris.Errorf("crash: line %d: blank %s", line, ColCaseID)
		}

		if strings.TrimSpace(row.Age) == "" {
			blankAge++
			continue
		}
		age, err := parseWhole(row.Age)
		if err != nil {
			return nil, eris.Wrapf(err, "crash: line %d: %s", line, ColAge)
		}
		if age < 0 {
			return nil, eris.Errorf("crash: line %d: negative %s %d", line, ColAge, age)
		}
		v.Age = age

		if strings.TrimSpace(row.Role) != "" {
			role, err := parseWhole(row.Role)
			if err != nil {
				return nil, eris.Wrapf(err, "crash: line %d: %s", line, ColRole)
			}
			v.Role = Role(role)
		}

		victims = append(victims, v)
	}

	if blankAge > 0 {
		zap.L().Debug("crash: dropped victims without age", zap.Int("count", blankAge))
	}

	return victims, nil
}

// newDecoder wraps r in a BOM-tolerant CSV reader and binds a csvutil decoder to its header,
// failing when any required column is absent.
func newDecoder(r io.Reader, required []string) (*csv.Reader, *csvutil.Decoder, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.LazyQuotes = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, eris.New("empty file")
		}
		return nil, nil, eris.Wrap(err, "read header")
	}
	dec.DisallowMissingColumns = true

	present := make(map[string]bool, len(dec.Header()))
	for _, h := range dec.Header() {
		present[h] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, eris.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return cr, dec, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, nil
	}
	return &v, nil
}

// parseWhole parses an integer code, accepting the "15.0" form spreadsheet exports produce.
func parseWhole(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("parse %q: not a whole number", s)
	}
	return int(f), nil
}
