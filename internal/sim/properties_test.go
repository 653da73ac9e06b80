package sim

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/episim/internal/epidemic"
)

var influenza = []Species{
	{Name: "Humans", SpeciesConfig: SpeciesConfig{InitialSusceptible: 283e6, InitialInfectious: 47e6, VaccinationRate: 0.001}},
	{Name: "Mallard Ducks", SpeciesConfig: SpeciesConfig{InitialSusceptible: 6.27e6, InitialInfectious: 3.3e5, VaccinationRate: 0.0005}},
	{Name: "Yorkshire Pigs", SpeciesConfig: SpeciesConfig{InitialSusceptible: 65.7e6, InitialInfectious: 7.3e6, VaccinationRate: 0.0008}},
}

var _ = Describe("Runner", func() {
	var (
		ctx    context.Context
		runner *Runner
		params Parameters
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = New()
		params = DefaultParameters()
	})

	Context("with the influenza species", func() {
		var res *Result

		BeforeEach(func() {
			var err error
			res, err = runner.Run(ctx, influenza, params)
			Expect(err).NotTo(HaveOccurred())
		})

		It("emits resolution rows per species in input order", func() {
			Expect(res.Table.Len()).To(Equal(3 * DefaultResolution))
			Expect(res.Table.Species()).To(Equal([]string{"Humans", "Mallard Ducks", "Yorkshire Pigs"}))
		})

		It("conserves each species' population", func() {
			for _, sp := range influenza {
				n0 := sp.InitialSusceptible + sp.InitialInfectious
				for _, x := range res.Trajectories[sp.Name] {
					Expect(math.Abs(epidemic.Population(x)-n0) / n0).To(BeNumerically("<=", 1e-6), sp.Name)
				}
			}
		})

		It("never decreases recovered or vaccinated counts", func() {
			for _, sp := range influenza {
				tr := res.Trajectories[sp.Name]
				slack := 1e-9 * (sp.InitialSusceptible + sp.InitialInfectious)
				for _, c := range []int{epidemic.Recovered, epidemic.Vaccinated} {
					series := tr.Series(c)
					for i := 1; i < len(series); i++ {
						Expect(series[i]).To(BeNumerically(">=", series[i-1]-slack), sp.Name)
					}
				}
			}
		})

		It("switches the human population to the stiff solver", func() {
			Expect(res.Stats["Humans"].Stiff).To(BeTrue())
		})
	})

	DescribeTable("fixed points",
		func(sp Species, compartment int) {
			res, err := runner.Run(ctx, []Species{sp}, params)
			Expect(err).NotTo(HaveOccurred())
			for _, v := range res.Trajectories[sp.Name].Series(compartment) {
				Expect(v).To(BeNumerically("~", 0, 1e-12))
			}
		},
		Entry("no infectious stays infection free",
			Species{Name: "clean", SpeciesConfig: SpeciesConfig{InitialSusceptible: 1000, VaccinationRate: 0.01}},
			epidemic.Infectious),
		Entry("no infectious never recovers anyone",
			Species{Name: "clean", SpeciesConfig: SpeciesConfig{InitialSusceptible: 1000, VaccinationRate: 0.01}},
			epidemic.Recovered),
		Entry("no vaccination keeps vaccinated at zero",
			Species{Name: "unvaccinated", SpeciesConfig: SpeciesConfig{InitialSusceptible: 1000, InitialInfectious: 10}},
			epidemic.Vaccinated),
	)

	It("decays susceptibles exponentially when nobody is infectious", func() {
		sp := Species{Name: "clean", SpeciesConfig: SpeciesConfig{InitialSusceptible: 1000, VaccinationRate: 0.01}}
		res, err := runner.Run(ctx, []Species{sp}, params)
		Expect(err).NotTo(HaveOccurred())

		s := res.Trajectories["clean"].Series(epidemic.Susceptible)
		for i, t := range res.Times {
			Expect(s[i]).To(BeNumerically("~", 1000*math.Exp(-0.01*t), 1e-3))
		}
	})

	It("rejects invalid input before integrating", func() {
		params.Resolution = 1
		_, err := runner.Run(ctx, influenza, params)
		Expect(err).To(MatchError(ErrInvalidParameter))
	})
})
