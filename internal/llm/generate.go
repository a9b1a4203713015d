package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/joelkehle/roimap/internal/report"
	"github.com/rs/zerolog"
)

// ErrNoReport is returned when the model produced no output at all.
var ErrNoReport = errors.New("AI failed to generate a report for the city.")

const (
	generateMaxTokens = 16000
	minZoom           = 1
	maxZoom           = 20
	researchURLBase   = "https://example.com/report/"
)

const generateSystemPrompt = "You are an expert financial analyst and urban planner. Respond with strict JSON only."

const generatePromptTemplate = `Create a fictional investment ROI report for %[1]s.
The report must be comprehensive, detailed, and adhere strictly to the JSON shape below.

{
  "city": "%[1]s",
  "mapCenter": {"lat": number, "lng": number},
  "mapZoom": integer between 10 and 13,
  "executive_summary": string,
  "regions": [ 3 to 5 objects, each:
    {
      "id": unique slug such as "tech-park",
      "name": descriptive name such as "Tech Park District",
      "coordinates": {"lat": number, "lng": number},
      "polygonCoordinates": 4 to 6 {"lat", "lng"} vertices of a simple, non-self-intersecting polygon,
      "roiPercentage": number such as 8.5,
      "projectedRevenue": revenue range string in the city's currency, such as "€3M - €5M",
      "projectedCost": total cost in USD as a number,
      "netProfit": net profit in USD as a number,
      "timeline": string such as "18-24 months",
      "executiveSummary": 1-2 sentences,
      "details": 2-4 sentences covering opportunities and risks,
      "marketSizeAndDensity": 1-2 sentences,
      "demographicProfile": 1-2 sentences,
      "projectedDemand": 1-2 sentences,
      "deploymentComplexity": 1-2 sentences,
      "laborAndResourceCosts": 1-2 sentences,
      "incumbentAnalysis": 1-2 sentences,
      "competitivePricing": 1-2 sentences,
      "permittingAndRegulation": 1-2 sentences,
      "esgImpactScore": score with a brief justification,
      "detailed_report": markdown synthesising every data point, "##" for section titles and "###" for subsections
    }
  ]
}

Use plausible coordinates inside %[1]s. All text must be professional and varied. Do not use placeholder text.`

// Generator produces a complete fictional report for a city name.
type Generator struct {
	exec *JSONExecutor
	log  zerolog.Logger
}

func NewGenerator(caller Caller, log zerolog.Logger) *Generator {
	log = log.With().Str("component", "report_generator").Logger()
	return &Generator{exec: NewJSONExecutor(caller, generateSystemPrompt, generateMaxTokens, log), log: log}
}

func (g *Generator) Generate(ctx context.Context, cityName string) (*report.Report, error) {
	cityName = strings.TrimSpace(cityName)
	if cityName == "" {
		return nil, errors.New("city name is required")
	}

	var out report.Report
	attempts, err := g.exec.Run(ctx, "generate report", fmt.Sprintf(generatePromptTemplate, cityName), &out, func() error {
		return validateGenerated(&out)
	})
	if errors.Is(err, errEmptyOutput) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, err
	}

	out.City = cityName
	slug := citySlug(cityName)
	for i := range out.Regions {
		out.Regions[i].DeepResearchReportURL = researchURLBase + slug + "/" + out.Regions[i].ID
		if out.Regions[i].Timeline == "" {
			out.Regions[i].Timeline = report.DefaultTimeline
		}
	}
	g.log.Info().Str("city", cityName).Int("regions", len(out.Regions)).Int("attempts", attempts).Msg("report generated")
	return &out, nil
}

func validateGenerated(r *report.Report) error {
	var problems []string
	if len(r.Regions) == 0 {
		problems = append(problems, "regions must not be empty")
	}
	if r.MapZoom < minZoom || r.MapZoom > maxZoom {
		problems = append(problems, fmt.Sprintf("mapZoom %v out of range", r.MapZoom))
	}
	if !validPoint(r.MapCenter) {
		problems = append(problems, "mapCenter is not a valid coordinate")
	}
	seen := map[string]bool{}
	for i, region := range r.Regions {
		label := fmt.Sprintf("regions[%d]", i)
		if strings.TrimSpace(region.ID) == "" {
			problems = append(problems, label+".id is required")
		} else if seen[strings.ToLower(region.ID)] {
			problems = append(problems, label+".id duplicates "+region.ID)
		} else {
			seen[strings.ToLower(region.ID)] = true
		}
		if strings.TrimSpace(region.Name) == "" {
			problems = append(problems, label+".name is required")
		}
		if len(region.PolygonCoordinates) < 3 {
			problems = append(problems, label+".polygonCoordinates needs at least 3 vertices")
		}
		for _, p := range region.PolygonCoordinates {
			if !validPoint(p) {
				problems = append(problems, label+".polygonCoordinates has an invalid vertex")
				break
			}
		}
		if !validPoint(region.Coordinates) {
			problems = append(problems, label+".coordinates is not a valid coordinate")
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func validPoint(p report.LatLng) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func citySlug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
