package evolution

import (
	"math/rand"
	"sort"

	"github.com/tmarlen/aurora/pkg/types"
)

// Params are the genetic-search knobs.
type Params struct {
	PopulationSize int
	EliteCount     int
	MutationRate   float64
	CrossoverRate  float64
	Generations    int
}

// DefaultParams returns the documented GA configuration: a single-pass
// search with two rounds of fitness evaluation.
func DefaultParams() Params {
	return Params{
		PopulationSize: 50,
		EliteCount:     5,
		MutationRate:   0.15,
		CrossoverRate:  0.7,
		Generations:    1,
	}
}

// FitnessFunc scores one candidate genome; higher is better.
type FitnessFunc func(genes types.Genes) float64

type individual struct {
	genes   types.Genes
	fitness float64
}

// Engine runs the genetic search. It is pure: outcomes and candles come in
// through the fitness function, nothing here touches a store.
type Engine struct {
	params  Params
	fitness FitnessFunc
	rng     *rand.Rand
}

// NewEngine builds a search engine with the given knobs and fitness.
func NewEngine(params Params, fitness FitnessFunc, seed int64) *Engine {
	if params.PopulationSize <= 0 {
		params = DefaultParams()
	}
	return &Engine{
		params:  params,
		fitness: fitness,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Evolve runs the configured generations and returns the alpha genome.
func (e *Engine) Evolve() types.Genes {
	population := make([]individual, e.params.PopulationSize)
	for i := range population {
		population[i] = individual{genes: randomGenes(e.rng)}
	}

	e.evaluate(population)
	sortByFitness(population)

	for gen := 0; gen < e.params.Generations; gen++ {
		next := make([]individual, 0, len(population))

		// elitism: the best survive untouched
		for i := 0; i < e.params.EliteCount && i < len(population); i++ {
			next = append(next, population[i])
		}

		for len(next) < len(population) {
			var child types.Genes
			if e.rng.Float64() < e.params.CrossoverRate {
				p1 := e.rouletteSelect(population)
				p2 := e.rouletteSelect(population)
				child = crossover(p1.genes, p2.genes, e.rng)
			} else {
				child = e.rouletteSelect(population).genes
			}
			child = mutate(child, e.params.MutationRate, e.rng)
			next = append(next, individual{genes: child})
		}

		population = next
		e.evaluate(population)
		sortByFitness(population)
	}

	return population[0].genes
}

func (e *Engine) evaluate(population []individual) {
	for i := range population {
		population[i].fitness = e.fitness(population[i].genes)
	}
}

// rouletteSelect draws an individual with probability proportional to its
// non-negative fitness; a zero-sum population falls back to a uniform pick.
func (e *Engine) rouletteSelect(population []individual) individual {
	total := 0.0
	for _, ind := range population {
		if ind.fitness > 0 {
			total += ind.fitness
		}
	}
	if total <= 0 {
		return population[e.rng.Intn(len(population))]
	}

	target := e.rng.Float64() * total
	acc := 0.0
	for _, ind := range population {
		if ind.fitness > 0 {
			acc += ind.fitness
		}
		if acc >= target {
			return ind
		}
	}
	return population[len(population)-1]
}

func sortByFitness(population []individual) {
	sort.SliceStable(population, func(i, j int) bool {
		return population[i].fitness > population[j].fitness
	})
}
