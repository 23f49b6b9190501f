package kinesis

import (
	"fmt"
	"sort"

	"kinesis/internal/engine"
	"kinesis/internal/envctx"
	"kinesis/internal/intent"
	"kinesis/internal/morphology"

	"github.com/go-gl/mathgl/mgl64"
)

// Scenario is a canned end-to-end exercise: a morphology, an intent
// setup and a scripted environment feed. Scenarios are how operators
// smoke-test the pipeline without wiring a live fact source.
type Scenario struct {
	Name        string
	Description string
	Ticks       int
	Morphology  morphology.Document
	Setup       func(e *engine.Entity) error
	FrameAt     func(tick uint64) envctx.Frame
}

// BipedDocument is the reference two-legged morphology used by the
// built-in scenarios: a pelvis root with two three-joint legs.
func BipedDocument() morphology.Document {
	hipLimit := morphology.Limit{Min: -1.2, Max: 1.2, MaxVelocity: 12, MaxAcceleration: 600}
	kneeLimit := morphology.Limit{Min: -2.2, Max: 0.1, MaxVelocity: 14, MaxAcceleration: 700}
	ankleLimit := morphology.Limit{Min: -0.8, Max: 0.8, MaxVelocity: 10, MaxAcceleration: 500}
	leg := func(side string, x float64) []morphology.JointSpec {
		return []morphology.JointSpec{
			{ID: side + "_hip", Parent: "pelvis", Kind: morphology.KindRevolute,
				Axis: [3]float64{0, 0, 1}, Offset: [3]float64{x, -0.05, 0},
				Mass: 2, Inertia: 0.4, Limits: []morphology.Limit{hipLimit},
				Actuation: morphology.Actuation{MaxTorque: 180}},
			{ID: side + "_knee", Parent: side + "_hip", Kind: morphology.KindRevolute,
				Axis: [3]float64{0, 0, 1}, Offset: [3]float64{0, -0.4, 0},
				Mass: 2, Inertia: 0.3, Limits: []morphology.Limit{kneeLimit},
				Actuation: morphology.Actuation{MaxTorque: 140}},
			{ID: side + "_ankle", Parent: side + "_knee", Kind: morphology.KindRevolute,
				Axis: [3]float64{0, 0, 1}, Offset: [3]float64{0, -0.4, 0},
				Mass: 1, Inertia: 0.1, Limits: []morphology.Limit{ankleLimit},
				Actuation: morphology.Actuation{MaxTorque: 90}},
		}
	}
	joints := []morphology.JointSpec{
		{ID: "pelvis", Kind: morphology.KindRevolute,
			Axis: [3]float64{0, 0, 1}, Offset: [3]float64{0, 0.9, 0},
			Mass: 10, Inertia: 2, Limits: []morphology.Limit{{Min: -1.0, Max: 1.0, MaxVelocity: 8, MaxAcceleration: 400}},
			Actuation: morphology.Actuation{MaxTorque: 400}},
	}
	joints = append(joints, leg("l", -0.1)...)
	joints = append(joints, leg("r", 0.1)...)
	return morphology.Document{Name: "biped", Joints: joints}
}

func bipedSupport(x float64) envctx.Support {
	return envctx.Support{
		JointID:  "pelvis",
		Center:   mgl64.Vec3{x, 0, 0},
		Radius:   0.06,
		Capacity: 500,
		Tag:      fmt.Sprintf("foot@%g", x),
	}
}

func balanceSetup(e *engine.Entity) error {
	_, err := e.SubmitIntent(intent.Intent{
		Kind:       intent.GoalPreference,
		Preference: intent.PreferenceBalance,
		Weight:     1,
		Validity:   intent.ValidityPersistent,
	})
	return err
}

func builtinScenarios() map[string]Scenario {
	bipedBalance := Scenario{
		Name:        "biped-balance",
		Description: "two-footed stance loses the right foot mid-run; weight shifts over the left",
		Ticks:       240,
		Morphology:  BipedDocument(),
		Setup:       balanceSetup,
		FrameAt: func(tick uint64) envctx.Frame {
			if tick < 120 {
				return envctx.Frame{Supports: []envctx.Support{
					bipedSupport(-0.1), bipedSupport(0.1),
				}}
			}
			return envctx.Frame{Supports: []envctx.Support{bipedSupport(-0.1)}}
		},
	}
	contactLoss := Scenario{
		Name:        "contact-loss",
		Description: "a bracing contact vanishes abruptly, provoking a plastic response",
		Ticks:       200,
		Morphology:  BipedDocument(),
		Setup:       balanceSetup,
		FrameAt: func(tick uint64) envctx.Frame {
			f := envctx.Frame{Supports: []envctx.Support{
				bipedSupport(-0.1), bipedSupport(0.1),
			}}
			if tick < 100 {
				f.Contacts = []envctx.Contact{
					{JointID: "l_ankle", Point: mgl64.Vec3{-0.1, 0.05, 0},
						Normal: mgl64.Vec3{0, 1, 0}, Tag: "brace_l"},
					{JointID: "r_ankle", Point: mgl64.Vec3{0.1, 0.05, 0},
						Normal: mgl64.Vec3{0, 1, 0}, Tag: "brace_r"},
				}
			}
			return f
		},
	}
	return map[string]Scenario{
		bipedBalance.Name: bipedBalance,
		contactLoss.Name:  contactLoss,
	}
}

// Scenarios lists the built-in scenarios sorted by name.
func Scenarios() []Scenario {
	reg := builtinScenarios()
	out := make([]Scenario, 0, len(reg))
	for _, sc := range reg {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
