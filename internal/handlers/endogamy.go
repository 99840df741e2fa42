package handlers

import (
	"net/http"
	"strings"

	"github.com/asakaida/relcalc/internal/entities"
	"github.com/asakaida/relcalc/internal/httputil"
)

// EndogamyLevelHelp describes one endogamy level
type EndogamyLevelHelp struct {
	Nombre      string  `json:"nombre"`
	Descripcion string  `json:"descripcion"`
	Ejemplos    string  `json:"ejemplos"`
	EfectoADN   string  `json:"efecto_adn"`
	Factor      float64 `json:"factor"`
}

// Reference is a suggested reading about endogamy
type Reference struct {
	Titulo      string `json:"titulo"`
	Autor       string `json:"autor"`
	Fuente      string `json:"fuente"`
	URL         string `json:"url,omitempty"`
	Descripcion string `json:"descripcion"`
}

// Explanation is a titled block of text
type Explanation struct {
	Titulo    string `json:"titulo"`
	Contenido string `json:"contenido"`
}

// EndogamyHelp is the endogamy help document
type EndogamyHelp struct {
	Niveles            map[entities.EndogamyLevel]EndogamyLevelHelp `json:"niveles"`
	Referencias        []Reference                                  `json:"referencias"`
	ExplicacionGeneral Explanation                                  `json:"explicacion_general"`
}

var levelTexts = map[entities.EndogamyLevel][3]string{
	entities.EndogamyNone: {
		"Sin matrimonios conocidos entre parientes.",
		"Familias de poblaciones abiertas sin antepasados repetidos en el árbol.",
		"Los cM compartidos se interpretan sin ajuste.",
	},
	entities.EndogamyLight: {
		"Algún matrimonio entre parientes lejanos en generaciones anteriores.",
		"Pueblos pequeños con uno o dos antepasados repetidos.",
		"Los cM compartidos se dividen por 1.2.",
	},
	entities.EndogamyModerate: {
		"Varios matrimonios entre parientes en distintas ramas.",
		"Comunidades rurales aisladas durante varias generaciones.",
		"Los cM compartidos se dividen por 1.4.",
	},
	entities.EndogamyHigh: {
		"Matrimonios frecuentes entre primos a lo largo de muchas generaciones.",
		"Islas o valles aislados y comunidades religiosas cerradas.",
		"Los cM compartidos se dividen por 1.7.",
	},
	entities.EndogamyVeryHigh: {
		"Población fundadora pequeña con endogamia sostenida durante siglos.",
		"Poblaciones judías asquenazíes, acadianos o menonitas.",
		"Los cM compartidos se dividen por 2.0.",
	},
}

var endogamyReferences = []Reference{
	{
		Titulo:      "Endogamia y ADN: Guía para genealogistas",
		Autor:       "Blaine Bettinger",
		Fuente:      "The Genetic Genealogist",
		URL:         "https://thegeneticgenealogist.com/",
		Descripcion: "Artículo sobre cómo la endogamia afecta la interpretación del ADN compartido.",
	},
	{
		Titulo:      "Endogamia en poblaciones judías",
		Autor:       "Harry Ostrer",
		Fuente:      "Genetic Studies of Jewish Populations",
		Descripcion: "Estudio sobre los efectos de la endogamia en poblaciones judías y su impacto en el ADN compartido.",
	},
	{
		Titulo:      "Endogamia y genealogía genética",
		Autor:       "Roberto Hernández",
		Fuente:      "Genealogía Genética en Español",
		URL:         "https://genealogiagenetica.es/",
		Descripcion: "Guía en español sobre cómo interpretar el ADN compartido en casos de endogamia.",
	},
}

const endogamyExplanation = `La endogamia ocurre cuando hay matrimonios entre parientes en una familia. ` +
	`Esto puede hacer que dos personas compartan más ADN del que normalmente se esperaría para su relación.

Por ejemplo, dos primos hermanos de familias sin endogamia comparten en promedio alrededor de 850 cM. ` +
	`Si sus familias tienen un historial de endogamia pueden compartir bastantes más cM y parecer más cercanos de lo que son.

Ajustar los cM compartidos según el nivel de endogamia de la familia ayuda a interpretar mejor la relación.`

// NewEndogamyHelp builds the endogamy help document
func NewEndogamyHelp() *EndogamyHelp {
	levels := make(map[entities.EndogamyLevel]EndogamyLevelHelp, len(entities.EndogamyLevels))
	for _, level := range entities.EndogamyLevels {
		factor, _ := level.Factor()
		texts := levelTexts[level]
		levels[level] = EndogamyLevelHelp{
			Nombre:      capitalize(string(level)),
			Descripcion: texts[0],
			Ejemplos:    texts[1],
			EfectoADN:   texts[2],
			Factor:      factor,
		}
	}
	return &EndogamyHelp{
		Niveles:     levels,
		Referencias: endogamyReferences,
		ExplicacionGeneral: Explanation{
			Titulo:    "¿Qué es la endogamia y cómo afecta al ADN compartido?",
			Contenido: endogamyExplanation,
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// EndogamyHelp handles GET /api/endogamia/ayuda
func (h *APIHandler) EndogamyHelp(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, NewEndogamyHelp())
}
