package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	contractx "github.com/tanpawarit/remibot/agent/contract"
)

const (
	MinWeightTonnes = 5.0
	MaxWeightTonnes = 40.0

	minDriverIDDigits = 7
	maxDriverIDDigits = 10
	minNameLength     = 2
)

var (
	plateUY = regexp.MustCompile(`^[A-Z]{3}\d{4}$`)
	plateAR = regexp.MustCompile(`^[A-Z]{2}\d{3}[A-Z]{2}$`)
	plateBR = regexp.MustCompile(`^[A-Z]{3}\d[A-Z]\d{2}$`)
	platePY = regexp.MustCompile(`^[A-Z]{4}\d{3}$`)

	nonDigit   = regexp.MustCompile(`\D`)
	nonNumeric = regexp.MustCompile(`[^\d.,]`)
	whitespace = regexp.MustCompile(`\s+`)
)

var errInvalidPlate = errors.New("Matrícula inválida. Formatos válidos: ABC 1234 (UY), AB123CD (AR), ABC1D23 (BR), ABCD 123 (PY)")

var labels = map[string]string{
	contractx.FieldOrganization: "Empresa",
	contractx.FieldSite:         "Establecimiento",
	contractx.FieldPlot:         "Chacra",
	contractx.FieldDriverName:   "Conductor",
	contractx.FieldDriverID:     "Cédula",
	contractx.FieldTruckPlate:   "Matrícula camión",
	contractx.FieldWeight:       "Peso estimado",
	contractx.FieldDestination:  "Destino",
}

// noTrailer holds the lowercase spellings that mean "no trailer".
var noTrailer = map[string]struct{}{
	"null":         {},
	"none":         {},
	"ninguna":      {},
	"ninguno":      {},
	"no tiene":     {},
	"sin zorra":    {},
	"no aplica":    {},
	"n/a":          {},
	"na":           {},
	"no":           {},
	"-":            {},
	"no trailer":   {},
	"sin trailer":  {},
	"sin acoplado": {},
}

// Draft is a receipt whose every field passed validation.
type Draft struct {
	Organization string  `json:"nombre_empresa"`
	Site         string  `json:"nombre_establecimiento"`
	Plot         string  `json:"nombre_chacra"`
	DriverName   string  `json:"nombre_conductor"`
	DriverID     string  `json:"cedula_conductor"`
	TruckPlate   string  `json:"matricula_camion"`
	TrailerPlate *string `json:"matricula_zorra"`
	WeightTonnes float64 `json:"peso_estimado_tn"`
	Destination  string  `json:"nombre_destino"`
}

// Result reports every problem found in one pass. Draft is set only when
// Valid. Warnings never make a record invalid.
type Result struct {
	Valid    bool
	Draft    *Draft
	Errors   []string
	Warnings []string
}

// Record validates and normalizes an untrusted payload.
func Record(payload map[string]any) Result {
	var errs, warns []string
	fields := map[string]string{}

	for _, key := range contractx.RequiredFields {
		text, ok := present(payload[key])
		if !ok {
			errs = append(errs, labels[key]+" es requerido")
			continue
		}
		fields[key] = text
	}

	draft := &Draft{}
	names := []struct {
		key string
		dst *string
	}{
		{contractx.FieldOrganization, &draft.Organization},
		{contractx.FieldSite, &draft.Site},
		{contractx.FieldPlot, &draft.Plot},
		{contractx.FieldDriverName, &draft.DriverName},
		{contractx.FieldDestination, &draft.Destination},
	}
	for _, n := range names {
		text, ok := fields[n.key]
		if !ok {
			continue
		}
		name, err := Name(labels[n.key], text)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		*n.dst = name
	}

	if text, ok := fields[contractx.FieldDriverID]; ok {
		id, err := DriverID(text)
		if err != nil {
			errs = append(errs, err.Error())
		}
		draft.DriverID = id
	}

	if text, ok := fields[contractx.FieldTruckPlate]; ok {
		plate, err := Plate(text)
		if err != nil {
			errs = append(errs, err.Error())
		}
		draft.TruckPlate = plate
	}

	if _, ok := fields[contractx.FieldWeight]; ok {
		w, err := Weight(payload[contractx.FieldWeight])
		if err != nil {
			errs = append(errs, err.Error())
		}
		draft.WeightTonnes = w
	}

	if text, ok := present(payload[contractx.FieldTrailerPlate]); ok && !IsNoTrailer(text) {
		plate, err := Plate(text)
		if err != nil {
			warns = append(warns, "Matrícula zorra: "+err.Error())
		} else {
			draft.TrailerPlate = &plate
		}
	}

	if len(errs) > 0 {
		return Result{Errors: errs, Warnings: warns}
	}
	return Result{Valid: true, Draft: draft, Warnings: warns}
}

// Message renders the validation errors for the user.
func (r Result) Message() string {
	var b strings.Builder
	b.WriteString("❌ *Error en los datos del remito:*\n\n")
	for _, e := range r.Errors {
		b.WriteString("• ")
		b.WriteString(e)
		b.WriteString("\n")
	}
	b.WriteString("\nPor favor, corregí los datos y volvé a intentar.")
	return b.String()
}

// DriverID keeps only digits and requires 7 to 10 of them.
func DriverID(raw string) (string, error) {
	digits := nonDigit.ReplaceAllString(raw, "")
	switch {
	case digits == "":
		return "", errors.New("Cédula no puede estar vacía")
	case len(digits) < minDriverIDDigits:
		return "", fmt.Errorf("Cédula muy corta: debe tener entre %d y %d dígitos", minDriverIDDigits, maxDriverIDDigits)
	case len(digits) > maxDriverIDDigits:
		return "", fmt.Errorf("Cédula muy larga: debe tener entre %d y %d dígitos", minDriverIDDigits, maxDriverIDDigits)
	}
	return digits, nil
}

// Plate uppercases, drops whitespace and matches one of the four regional
// formats. Uruguayan and Paraguayan plates get their conventional space back.
func Plate(raw string) (string, error) {
	cleaned := whitespace.ReplaceAllString(strings.ToUpper(strings.TrimSpace(raw)), "")
	switch {
	case plateUY.MatchString(cleaned):
		return cleaned[:3] + " " + cleaned[3:], nil
	case platePY.MatchString(cleaned):
		return cleaned[:4] + " " + cleaned[4:], nil
	case plateAR.MatchString(cleaned), plateBR.MatchString(cleaned):
		return cleaned, nil
	}
	return "", errInvalidPlate
}

func IsNoTrailer(raw string) bool {
	_, ok := noTrailer[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// Weight accepts a number or numeric text with an optional unit and returns
// tonnes rounded to two decimals. Text naming kilos and not tonnes is divided
// by 1000.
func Weight(v any) (float64, error) {
	var tonnes float64
	switch val := v.(type) {
	case float64:
		tonnes = val
	case float32:
		tonnes = float64(val)
	case int:
		tonnes = float64(val)
	case int64:
		tonnes = float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, errInvalidWeight
		}
		tonnes = f
	case string:
		f, err := parseWeightText(val)
		if err != nil {
			return 0, err
		}
		tonnes = f
	default:
		return 0, errInvalidWeight
	}

	if math.IsNaN(tonnes) || math.IsInf(tonnes, 0) {
		return 0, errInvalidWeight
	}
	if tonnes < MinWeightTonnes {
		return 0, fmt.Errorf("Peso mínimo: %.1f toneladas", MinWeightTonnes)
	}
	if tonnes > MaxWeightTonnes {
		return 0, fmt.Errorf("Peso máximo: %.1f toneladas", MaxWeightTonnes)
	}
	return math.Round(tonnes*100) / 100, nil
}

var errInvalidWeight = errors.New("Peso debe ser un número válido")

func parseWeightText(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(nonNumeric.ReplaceAllString(raw, ""), ",", ".")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, errInvalidWeight
	}
	lower := strings.ToLower(raw)
	if (strings.Contains(lower, "kg") || strings.Contains(lower, "kilo")) && !strings.Contains(lower, "tonelada") {
		f /= 1000
	}
	return f, nil
}

// Name trims and requires at least two characters.
func Name(label string, raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) < minNameLength {
		return "", fmt.Errorf("%s debe tener al menos %d caracteres", label, minNameLength)
	}
	return name, nil
}

func present(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	var text string
	switch val := v.(type) {
	case string:
		text = val
	case float64:
		text = strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		text = val.String()
	default:
		text = fmt.Sprint(val)
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// Fields returns the draft keyed by payload field names.
func (d Draft) Fields() map[string]any {
	var trailer any
	if d.TrailerPlate != nil {
		trailer = *d.TrailerPlate
	}
	return map[string]any{
		contractx.FieldOrganization: d.Organization,
		contractx.FieldSite:         d.Site,
		contractx.FieldPlot:         d.Plot,
		contractx.FieldDriverName:   d.DriverName,
		contractx.FieldDriverID:     d.DriverID,
		contractx.FieldTruckPlate:   d.TruckPlate,
		contractx.FieldTrailerPlate: trailer,
		contractx.FieldWeight:       d.WeightTonnes,
		contractx.FieldDestination:  d.Destination,
	}
}
