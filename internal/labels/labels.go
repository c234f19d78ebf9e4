// Package labels holds the classifier's label table and the rules for turning
// a "<Plant>___<Condition>" label into display text.
package labels

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Separator splits a label into plant and condition.
const Separator = "___"

// ExpectedCount is the number of classes the plant disease model was trained on.
const ExpectedCount = 38

// HealthyCondition is the condition suffix used for disease-free leaves.
const HealthyCondition = "healthy"

// defaultLabels is ordered exactly as the model's output vector.
var defaultLabels = []string{
	"Apple___Apple_scab", "Apple___Black_rot", "Apple___Cedar_apple_rust",
	"Apple___healthy", "Blueberry___healthy", "Cherry_(including_sour)___healthy",
	"Cherry_(including_sour)___Powdery_mildew", "Corn_(maize)___Cercospora_leaf_spot Gray_leaf_spot",
	"Corn_(maize)___Common_rust_", "Corn_(maize)___healthy", "Corn_(maize)___Northern_Leaf_Blight",
	"Grape___Black_rot", "Grape___Esca_(Black_Measles)", "Grape___healthy",
	"Grape___Leaf_blight_(Isariopsis_Leaf_Spot)", "Orange___Haunglongbing_(Citrus_greening)",
	"Peach___Bacterial_spot", "Peach___healthy", "Pepper,_bell___Bacterial_spot",
	"Pepper,_bell___healthy", "Potato___Early_blight", "Potato___healthy",
	"Potato___Late_blight", "Raspberry___healthy", "Soybean___healthy",
	"Squash___Powdery_mildew", "Strawberry___healthy", "Strawberry___Leaf_scorch",
	"Tomato___Bacterial_spot", "Tomato___Early_blight", "Tomato___healthy",
	"Tomato___Late_blight", "Tomato___Leaf_Mold", "Tomato___Septoria_leaf_spot",
	"Tomato___Spider_mites Two-spotted_spider_mite", "Tomato___Target_Spot",
	"Tomato___Tomato_mosaic_virus", "Tomato___Tomato_Yellow_Leaf_Curl_Virus",
}

// Table is a positionally aligned label list: Table[i] names output index i.
type Table []string

// Default returns a copy of the built-in label table.
func Default() Table {
	return slices.Clone(defaultLabels)
}

// Load reads one label per line from path. Blank lines are skipped.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var table Table
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		table = append(table, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading labels %s: %w", path, err)
	}
	return table, nil
}

// Validate checks the table against the expected class count and the width of
// the classifier's output vector. A mismatch means index i no longer names
// class i, so the caller must refuse to serve.
func (t Table) Validate(outputWidth int) error {
	if len(t) != ExpectedCount {
		return fmt.Errorf("label table has %d entries, want %d", len(t), ExpectedCount)
	}
	if outputWidth != len(t) {
		return fmt.Errorf("classifier outputs %d classes but label table has %d", outputWidth, len(t))
	}
	seen := make(map[string]struct{}, len(t))
	for i, label := range t {
		if _, _, ok := Split(label); !ok {
			return fmt.Errorf("label %d %q is not of the form <Plant>%s<Condition>", i, label, Separator)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("label %q appears twice", label)
		}
		seen[label] = struct{}{}
	}
	return nil
}

// At returns the label for output index i.
func (t Table) At(i int) (string, bool) {
	if i < 0 || i >= len(t) {
		return "", false
	}
	return t[i], true
}

// Contains reports whether label is in the table.
func (t Table) Contains(label string) bool {
	return slices.Contains(t, label)
}

// Plants returns the distinct plant prefixes in table order.
func (t Table) Plants() []string {
	var plants []string
	for _, label := range t {
		plant, _, ok := Split(label)
		if !ok || slices.Contains(plants, plant) {
			continue
		}
		plants = append(plants, plant)
	}
	return plants
}

// Conditions returns the raw condition suffixes of every label whose plant is
// exactly plant. An unknown plant yields an empty list.
func (t Table) Conditions(plant string) []string {
	conditions := []string{}
	prefix := plant + Separator
	for _, label := range t {
		if strings.HasPrefix(label, prefix) {
			conditions = append(conditions, strings.TrimPrefix(label, prefix))
		}
	}
	return conditions
}

// Compose joins a plant and condition into a label key.
func Compose(plant, condition string) string {
	return plant + Separator + condition
}

// Split separates a label into plant and condition.
func Split(label string) (plant, condition string, ok bool) {
	plant, condition, ok = strings.Cut(label, Separator)
	if !ok || plant == "" || condition == "" {
		return "", "", false
	}
	return plant, condition, true
}

// Humanize replaces underscores with spaces and collapses runs of whitespace.
func Humanize(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " ")
}

// Display renders "Tomato___Late_blight" as "Tomato - Late blight". Labels
// without a separator are humanized as a whole.
func Display(label string) string {
	plant, condition, ok := Split(label)
	if !ok {
		return Humanize(label)
	}
	return Humanize(plant) + " - " + Humanize(condition)
}

// HealthyLabel returns the "<Plant>___healthy" label for plant.
func HealthyLabel(plant string) string {
	return Compose(plant, HealthyCondition)
}

// DisplayPlant renders a plant prefix for menus.
func DisplayPlant(plant string) string {
	return Humanize(plant)
}

// DisplayCondition renders a condition suffix for menus.
func DisplayCondition(condition string) string {
	return Humanize(condition)
}
