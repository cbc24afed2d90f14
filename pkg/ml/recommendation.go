package ml

import (
	"fmt"
	"strings"
)

// vitalConcern pairs a threshold check with the advice shown when it fires.
type vitalConcern struct {
	flagged func(Vitals) bool
	advice  string
}

var concerns = []vitalConcern{
	{
		flagged: func(v Vitals) bool { return v[VitalAge] < 18 || v[VitalAge] > 35 },
		advice:  "Your age group benefits from closer prenatal monitoring. Keep all scheduled checkups.",
	},
	{
		flagged: func(v Vitals) bool { return v[VitalSystolicBP] > 140 || v[VitalDiastolicBP] > 90 },
		advice:  "Your blood pressure reading is elevated. Reduce salt intake, rest, and contact your care provider.",
	},
	{
		flagged: func(v Vitals) bool { return v[VitalSystolicBP] < 90 || v[VitalDiastolicBP] < 60 },
		advice:  "Your blood pressure reading is low. Stay hydrated and rise slowly from sitting or lying down.",
	},
	{
		flagged: func(v Vitals) bool { return v[VitalBS] > 7.8 },
		advice:  "Your blood sugar is above the recommended range. Watch sugar intake and ask about a glucose test.",
	},
	{
		flagged: func(v Vitals) bool { return v[VitalBodyTemp] > 100.4 },
		advice:  "You have a fever. Rest, drink fluids, and seek medical attention if it persists.",
	},
	{
		flagged: func(v Vitals) bool { return v[VitalHeartRate] > 100 || v[VitalHeartRate] < 60 },
		advice:  "Your heart rate is outside the typical resting range. Avoid strenuous activity and mention it at your next visit.",
	},
}

// FallbackRecommendation builds deterministic advice from the threshold
// table when the text-generation service is unavailable. It never fails, so
// a generation outage degrades the response instead of breaking it.
func FallbackRecommendation(v Vitals, highRisk bool) string {
	var lines []string
	for _, c := range concerns {
		if c.flagged(v) {
			lines = append(lines, c.advice)
		}
	}
	if len(lines) == 0 {
		if highRisk {
			return "Your reported vitals look within range, but the assessment flagged elevated risk. Please consult your care provider for a full evaluation."
		}
		return "Your vitals look within the expected ranges. Maintain a balanced diet, stay hydrated, and keep your regular checkups."
	}
	header := "Based on your vitals, please note the following:"
	if highRisk {
		header = "Your assessment indicates elevated risk. Please review the following and consult your care provider:"
	}
	return fmt.Sprintf("%s\n- %s", header, strings.Join(lines, "\n- "))
}
