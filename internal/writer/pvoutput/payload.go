// internal/writer/pvoutput/payload.go
package pvoutput

import (
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/tamzrod/pv-reporter/internal/decoder"
	"github.com/tamzrod/pv-reporter/internal/weather"
)

// Status form codes (addstatus.jsp).
const (
	codeDate        = "d"
	codeTime        = "t"
	codeEnergyGen   = "v1"
	codePowerGen    = "v2"
	codeEnergyCons  = "v3"
	codePowerCons   = "v4"
	codeTemperature = "v5"
	codeVoltage     = "v6"
	codeExt8        = "v8"
	codeExt9        = "v9"
	codeExt10       = "v10"
	codeExt12       = "v12"
	codeMessage     = "m1"
	codeCumulative  = "c1"
)

// Output form codes (addoutput.jsp).
const (
	codeOutputDate    = "d"
	codeOutputEnergy  = "g"
	codeOutputComment = "cm"
)

// MaxMessageLen is the message length the service accepts.
const MaxMessageLen = 30

const (
	dateLayout = "20060102"
	timeLayout = "15:04"
)

// Consumption is optional metered usage. Inverter readings never carry it.
type Consumption struct {
	EnergyWh *int64
	PowerW   *float64
}

// StatusInput is everything one status submission is built from.
type StatusInput struct {
	Reading     decoder.Reading
	Weather     weather.Observation
	Consumption Consumption
	Cumulative  bool

	// PrevEnergy is the last energy value sent for the target, 0 before
	// the first send.
	PrevEnergy int64
}

// BuildStatus encodes one reading as addstatus.jsp form fields.
// Generated energy is only included when it differs from PrevEnergy.
func BuildStatus(in StatusInput) url.Values {
	r := in.Reading
	form := url.Values{}

	form.Set(codeDate, r.Timestamp.Format(dateLayout))
	form.Set(codeTime, r.Timestamp.Format(timeLayout))

	if in.PrevEnergy != r.EnergyToday {
		form.Set(codeEnergyGen, strconv.FormatInt(r.EnergyToday, 10))
	}
	form.Set(codePowerGen, formatFloat(r.ACPower))

	if in.Consumption.EnergyWh != nil {
		form.Set(codeEnergyCons, strconv.FormatInt(*in.Consumption.EnergyWh, 10))
	}
	if in.Consumption.PowerW != nil {
		form.Set(codePowerCons, formatFloat(*in.Consumption.PowerW))
	}

	if in.Weather.Fresh {
		form.Set(codeTemperature, formatFloat(in.Weather.Temperature))
	}

	form.Set(codeVoltage, formatFloat(r.PVVolts))
	form.Set(codeExt8, formatFloat(r.ACVolts))
	form.Set(codeExt9, formatFloat(r.InverterTemp))
	form.Set(codeExt10, strconv.FormatInt(r.EnergyTotal, 10))

	if r.PVPower > 0 {
		form.Set(codeExt12, strconv.FormatFloat(r.ACPower/r.PVPower, 'f', 3, 64))
	}

	msg := r.Comment
	if in.Weather.Fresh && in.Weather.Description != "" {
		msg += " - " + in.Weather.Description
	}
	if msg != "" {
		form.Set(codeMessage, truncate(msg, MaxMessageLen))
	}

	if in.Cumulative {
		form.Set(codeCumulative, "1")
	}
	return form
}

// BuildOutput encodes one end-of-day summary as addoutput.jsp form fields.
func BuildOutput(date time.Time, energyWh int64, comment string) url.Values {
	form := url.Values{}
	form.Set(codeOutputDate, date.Format(dateLayout))
	form.Set(codeOutputEnergy, strconv.FormatInt(energyWh, 10))
	if comment != "" {
		form.Set(codeOutputComment, comment)
	}
	return form
}

//
// ---- helpers ----
//

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	out := []rune(s)
	return string(out[:n])
}
