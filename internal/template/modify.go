package template

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"simflow/internal/domain"
)

const (
	fallbackLengthM = 15.24
	fallbackWidthM  = 15.24
	fallbackHeightM = 4.572
	defaultRackW    = 500
)

var (
	siteLocationRe   = regexp.MustCompile(`(?s)(Site:Location,\s*)[^;]+(;)`)
	buildingNorthRe  = regexp.MustCompile(`(Building,\s*[^,]+,\s*)([0-9.-]+)(,)`)
	vertexRe         = regexp.MustCompile(`^\s*([0-9.-]+)\s*,\s*([0-9.-]+)\s*,\s*([0-9.-]+)\s*([,;])\s*(!.*)?`)
	iteRe            = regexp.MustCompile(`(?s)(ElectricEquipment:ITE:AirCooled,.*?Watts/Unit,\s*)(\d+)(,\s*\d+)`)
	exteriorLightsRe = regexp.MustCompile(`(  Exterior:Lights,)`)
	outputRe         = regexp.MustCompile(`(  Output:)`)
	coolingSPRe      = regexp.MustCompile(`(?s)(Cooling Return Air Setpoint Schedule.*?Until: 24:00,)([0-9.-]+)(;)`)
	heatingSPRe      = regexp.MustCompile(`(?s)(Heating Setpoint Schedule.*?Until: 24:00,)([0-9.-]+)(;)`)
	simControlRe     = regexp.MustCompile(`(?s)(SimulationControl,.*?Run Simulation for Sizing Periods,\s*)(Yes|No)(,.*?Run Simulation for Weather File Run Periods,\s*)(Yes|No)`)
)

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func applyLocation(idf string, loc domain.Location) (string, []string) {
	name := loc.Name
	if name == "" {
		name = fmt.Sprintf("Site_%.2f_%.2f", loc.Latitude, loc.Longitude)
	}
	elev := 0.0
	if loc.ElevationM != nil {
		elev = *loc.ElevationM
	}
	tz := int(math.Round(loc.Longitude / 15))

	if !siteLocationRe.MatchString(idf) {
		return idf, nil
	}

	block := fmt.Sprintf("Site:Location,\n"+
		"    %s,  !- Name\n"+
		"    %s,                   !- Latitude {deg}\n"+
		"    %s,                   !- Longitude {deg}\n"+
		"    %d,                    !- Time Zone {hr}\n"+
		"    %s;   !- Elevation {m}",
		name, num(loc.Latitude), num(loc.Longitude), tz, num(elev))

	idf = siteLocationRe.ReplaceAllLiteralString(idf, block)
	return idf, []string{fmt.Sprintf("Updated Site:Location to %s (%s, %s)", name, num(loc.Latitude), num(loc.Longitude))}
}

func applyGeometry(idf string, g *domain.Geometry, defaults GeometryDefaults) (string, []string) {
	var mods []string

	baseL, baseW, baseH := orDefault(defaults.LengthM, fallbackLengthM), orDefault(defaults.WidthM, fallbackWidthM), orDefault(defaults.HeightM, fallbackHeightM)
	length, width, height := baseL, baseW, baseH
	if g.LengthM != nil {
		length = *g.LengthM
	}
	if g.WidthM != nil {
		width = *g.WidthM
	}
	if g.HeightM != nil {
		height = *g.HeightM
	}

	sx, sy, sz := length/baseL, width/baseW, height/baseH
	if math.Abs(sx-1) > 0.001 || math.Abs(sy-1) > 0.001 || math.Abs(sz-1) > 0.001 {
		idf = scaleVertices(idf, sx, sy, sz)
		mods = append(mods, fmt.Sprintf("Scaled geometry to %sm x %sm x %sm", num(length), num(width), num(height)))
	}

	if g.OrientationDeg != nil {
		if loc := buildingNorthRe.FindStringSubmatchIndex(idf); loc != nil {
			idf = idf[:loc[4]] + num(*g.OrientationDeg) + idf[loc[5]:]
		}
		mods = append(mods, fmt.Sprintf("Set building orientation to %s degrees", num(*g.OrientationDeg)))
	}
	return idf, mods
}

// scaleVertices multiplies the vertex coordinates of every
// BuildingSurface:Detailed object.
func scaleVertices(idf string, sx, sy, sz float64) string {
	lines := strings.Split(idf, "\n")
	out := make([]string, 0, len(lines))
	inSurface := false

	for _, line := range lines {
		if strings.Contains(line, "BuildingSurface:Detailed") {
			inSurface = true
			out = append(out, line)
			continue
		}

		if inSurface {
			if m := vertexRe.FindStringSubmatch(line); m != nil {
				x, errX := strconv.ParseFloat(m[1], 64)
				y, errY := strconv.ParseFloat(m[2], 64)
				z, errZ := strconv.ParseFloat(m[3], 64)
				if errX == nil && errY == nil && errZ == nil {
					out = append(out, fmt.Sprintf("    %.6f,%.6f,%.6f%s  %s", x*sx, y*sy, z*sz, m[4], m[5]))
					if m[4] == ";" {
						inSurface = false
					}
					continue
				}
			}
			if strings.HasSuffix(strings.TrimSpace(line), ";") {
				inSurface = false
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func applyDataCenter(idf string, dc *domain.DataCenterSpec) (string, []string) {
	if dc.RackCount == nil {
		return idf, nil
	}
	racks := *dc.RackCount

	watts := float64(defaultRackW)
	switch {
	case dc.ITLoadKW != nil:
		watts = *dc.ITLoadKW * 1000 / float64(racks)
	case dc.WattsPerRack != nil:
		watts = *dc.WattsPerRack
	}

	replacement := fmt.Sprintf("${1}%d,\n    %d", int(watts), racks)
	idf = iteRe.ReplaceAllString(idf, replacement)
	return idf, []string{fmt.Sprintf("Set IT equipment: %d units at %.0fW each", racks, watts)}
}

func applyManufacturing(idf string, m *domain.ManufacturingSpec) (string, []string) {
	var mods []string

	if m.ProcessLoadKW != nil && *m.ProcessLoadKW > 0 {
		loadKW := *m.ProcessLoadKW
		fraction := 0.5
		if m.ProcessHeatFraction != nil {
			fraction = *m.ProcessHeatFraction
		}

		equipment := fmt.Sprintf(`
  ElectricEquipment,
    BulkStorage_ProcessLoad, !- Name
    BulkStorage,             !- Zone or ZoneList Name
    BLDG_EQUIP_SCH,          !- Schedule Name
    EquipmentLevel,          !- Design Level Calculation Method
    %.1f,    !- Design Level {W}
    ,                        !- Watts per Zone Floor Area {W/m2}
    ,                        !- Watts per Person {W/person}
    0,                       !- Fraction Latent
    %.2f,     !- Fraction Radiant
    0,                       !- Fraction Lost
    Manufacturing Process Equipment;  !- End-Use Subcategory

`, loadKW*1000, fraction)

		if exteriorLightsRe.MatchString(idf) {
			idf = exteriorLightsRe.ReplaceAllLiteralString(idf, equipment+"  Exterior:Lights,")
		} else if loc := outputRe.FindStringIndex(idf); loc != nil {
			idf = idf[:loc[0]] + equipment + idf[loc[0]:]
		}
		mods = append(mods, fmt.Sprintf("Added process equipment load: %.1f kW (%.0f%% radiant heat)", loadKW, fraction*100))
	}

	if m.OccupancyCount != nil {
		mods = append(mods, fmt.Sprintf("Note: Occupancy specified as %d people (requires manual IDF adjustment)", *m.OccupancyCount))
	}
	return idf, mods
}

func applySetpoints(idf string, sp *domain.Setpoints) (string, []string) {
	var mods []string
	if sp.CoolingSetpointC != nil {
		idf = coolingSPRe.ReplaceAllString(idf, "${1}"+num(*sp.CoolingSetpointC)+"${3}")
		mods = append(mods, fmt.Sprintf("Set cooling setpoint to %s°C", num(*sp.CoolingSetpointC)))
	}
	if sp.HeatingSetpointC != nil {
		idf = heatingSPRe.ReplaceAllString(idf, "${1}"+num(*sp.HeatingSetpointC)+"${3}")
		mods = append(mods, fmt.Sprintf("Set heating setpoint to %s°C", num(*sp.HeatingSetpointC)))
	}
	return idf, mods
}

func applySimulationControl(idf string, annual, designDays bool) (string, []string) {
	idf = simControlRe.ReplaceAllString(idf, "${1}"+yesNo(designDays)+"${3}"+yesNo(annual))
	return idf, []string{fmt.Sprintf("Simulation: design_days=%t, annual=%t", designDays, annual)}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
