package service

import (
	"fmt"
	"sync"

	"simflow/internal/domain"
	"simflow/internal/logger"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// GateEnv is the environment an export "when" expression is evaluated in.
type GateEnv struct {
	SimulationCompleted bool               `expr:"simulation_completed"`
	WarningsCount       int                `expr:"warnings_count"`
	ErrorsCount         int                `expr:"errors_count"`
	PUE                 float64            `expr:"pue"`
	EnergyKWh           map[string]float64 `expr:"energy_kwh"`
	BuildingType        string             `expr:"building_type"`
	AnalysisType        string             `expr:"analysis_type"`
	Annual              bool               `expr:"annual"`
	DesignDay           bool               `expr:"design_day"`
}

// NewGateEnv builds the environment from the request and collected results.
func NewGateEnv(req *domain.RunRequest, summary *domain.ResultsSummary) GateEnv {
	env := GateEnv{
		BuildingType: req.Building.BuildingType,
		AnalysisType: string(req.AnalysisType),
		Annual:       req.Simulation.Annual,
		DesignDay:    req.Simulation.DesignDay,
		EnergyKWh:    map[string]float64{},
	}
	if summary == nil {
		return env
	}
	env.SimulationCompleted = summary.SimulationCompleted
	env.WarningsCount = summary.WarningsCount
	env.ErrorsCount = summary.ErrorsCount
	if pue, ok := summary.PUE(); ok {
		env.PUE = pue
	}
	for meter, total := range summary.EnergySummary {
		env.EnergyKWh[meter] = total.TotalKWh
	}
	return env
}

// ExportGate decides whether the export stage is entered.
type ExportGate interface {
	Compile(expression string) error
	Allow(expression string, env GateEnv) (bool, error)
}

type exportGate struct {
	programs sync.Map // expression -> *vm.Program
	logger   logger.Logger
}

func NewExportGate(log logger.Logger) ExportGate {
	return &exportGate{
		logger: log.With(logger.String("component", "export_gate")),
	}
}

// Compile checks that expression is a boolean expression over GateEnv.
func (g *exportGate) Compile(expression string) error {
	_, err := g.program(expression)
	return err
}

// Allow evaluates expression. An empty expression always allows export.
func (g *exportGate) Allow(expression string, env GateEnv) (bool, error) {
	if expression == "" {
		return true, nil
	}

	program, err := g.program(expression)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, env)
	if err != nil {
		g.logger.Error("failed to evaluate export condition",
			logger.String("expression", expression),
			logger.Error(err))
		return false, fmt.Errorf("export condition evaluation failed: %w", err)
	}

	allowed, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("export condition did not return boolean: %T", result)
	}

	g.logger.Debug("export condition evaluated",
		logger.String("expression", expression),
		logger.Bool("allowed", allowed))
	return allowed, nil
}

func (g *exportGate) program(expression string) (*vm.Program, error) {
	if p, ok := g.programs.Load(expression); ok {
		return p.(*vm.Program), nil
	}

	program, err := expr.Compile(expression, expr.Env(GateEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid export condition: %w", err)
	}
	g.programs.Store(expression, program)
	return program, nil
}
