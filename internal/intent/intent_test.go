package intent

import (
	"reflect"
	"testing"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		utterance string
		want      Intent
	}{
		{"qué hay de nuevo hoy", DailySummary{}},
		{"Dame un RESUMEN", DailySummary{}},
		{"últimas noticias por favor", DailySummary{}},
		{"noticias de deportes", SearchCategory{models.CategorySports}},
		{"algo de política", SearchCategory{models.CategoryPolitics}},
		{"panorama económico", SearchCategory{models.CategoryEconomy}},
		{"novedades tech", SearchCategory{models.CategoryTechnology}},
		{"qué dice concytec", SearchCategory{models.CategoryCTI}},
		{"configura el lunes con política y economía", ConfigureDay{models.Monday, []models.Category{models.CategoryPolitics, models.CategoryEconomy}}},
		{"configura el sábado", ConfigureDay{models.Saturday, []models.Category{models.CategoryGeneral}}},
		{"configura miercoles con deporte y espectáculo", ConfigureDay{models.Wednesday, []models.Category{models.CategorySports, models.CategoryEntertainment}}},
		{"mis noticias", SavedNews{}},
		{"muéstrame las favoritas", SavedNews{}},
		{"actualiza todo", RefreshSources{}},
		{"quiero nuevas noticias", RefreshSources{}},
		{"Paolo Guerrero", SearchText{"Paolo Guerrero"}},
		{"", SearchText{""}},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			if got := Classify(tt.utterance); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Classify(%q) = %#v, want %#v", tt.utterance, got, tt.want)
			}
		})
	}
}

func TestClassify_Priority(t *testing.T) {
	// daily summary phrases win over categories
	if got := Classify("resumen de deportes"); got != (DailySummary{}) {
		t.Errorf("Classify() = %#v, want DailySummary", got)
	}
	// sports is tested before politics
	if got := Classify("deporte y política"); got != (SearchCategory{models.CategorySports}) {
		t.Errorf("Classify() = %#v, want Sports", got)
	}
	// without a weekday "configura" is just text
	if got := Classify("configura la voz"); got != (SearchText{"configura la voz"}) {
		t.Errorf("Classify() = %#v, want SearchText", got)
	}
}

func TestClassify_NaiveSubstring(t *testing.T) {
	// "práctica" contains "cti"
	if got := Classify("práctica de tiro"); got != (SearchCategory{models.CategoryCTI}) {
		t.Errorf("Classify() = %#v, want CTI from substring match", got)
	}
}

func TestClassify_NeverUnrecognized(t *testing.T) {
	for _, u := range []string{"asdfgh", "???", "hola"} {
		if _, ok := Classify(u).(Unrecognized); ok {
			t.Errorf("Classify(%q) returned Unrecognized", u)
		}
	}
}

func TestParseModelLabel(t *testing.T) {
	tests := []struct {
		label     string
		utterance string
		want      Intent
	}{
		{"resumen_dia", "x", DailySummary{}},
		{`"resumen_dia"`, "x", DailySummary{}},
		{"buscar_categoria:Deportes", "x", SearchCategory{models.CategorySports}},
		{"buscar_categoria:economia", "x", SearchCategory{models.CategoryEconomy}},
		{"buscar_categoria:clima", "x", SearchText{"clima"}},
		{"buscar_texto:Lapadula", "x", SearchText{"Lapadula"}},
		{"buscar_texto:", "texto original", SearchText{"texto original"}},
		{"configurar:dia", "pon el viernes con tecnologia", ConfigureDay{models.Friday, []models.Category{models.CategoryTechnology}}},
		{"configurar:voz", "cambia la voz", Unrecognized{"cambia la voz"}},
		{"no_reconocida", "blah", Unrecognized{"blah"}},
		{"cualquier cosa", "blah", Unrecognized{"blah"}},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := ParseModelLabel(tt.label, tt.utterance); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseModelLabel(%q) = %#v, want %#v", tt.label, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	if got := Name(ConfigureDay{Day: models.Monday}); got != "configure_day:MONDAY" {
		t.Errorf("Name() = %q", got)
	}
	if got := Name(SearchCategory{models.CategoryCTI}); got != "search_category:CTI" {
		t.Errorf("Name() = %q", got)
	}
}
