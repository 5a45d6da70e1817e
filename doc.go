// Package cmpkit compiles declarative component classes into metadata and
// runs their lifecycle on a pluggable rendering engine.
//
// # Classes and Decorators
//
// A class is declared with Define and extended through its builder. Members
// are decorated with Prop, Field, System, Computed, Watch and Hook:
//
//	var Counter = cmpkit.Define("b-counter", Block).
//	    Decorate("step", cmpkit.Prop(cmpkit.Params{Type: reflect.Int, Default: 1})).
//	    Decorate("count", cmpkit.Field(cmpkit.Params{Default: 0, Protected: true})).
//	    Method("load", load, cmpkit.HookOn(cmpkit.HookCreated))
//
// Decorations are queued and flushed into the class metadata the first time
// the metadata is needed. A child class starts from a structural copy of its
// parent's metadata, so overriding or adding a member never alters the
// parent.
//
// # Metadata and Base Options
//
// BuildBase turns a class into its base component options. The result is
// memoized per class and concurrent builds share one computation. Prop
// defaults that are functions or non-primitive values become factories, so
// instances never share mutable defaults.
//
// # Lifecycle
//
// A Registry registers classes with an Engine. Instances are created with
// NewInstance: props are resolved and validated, the beforeCreate phase
// wires methods and system fields, data fields are initialized and the
// created phase wires watchers. Mount, Update, Activate, Deactivate and
// Destroy drive the remaining phases.
//
// Fields may name sibling fields they must be initialized after; fields
// without pending dependencies are initialized concurrently. Hook callbacks
// of one phase work the same way. A dependency cycle or a missing
// dependency is a configuration error; a failing callback only prevents the
// callbacks that depend on it.
//
// # Protected Fields
//
// A protected field stores its value in a <name>Store field behind an
// accessor. While the instance holds its state semaphore (Acquire), writes
// are deferred and replayed in order once the last holder releases it.
//
// # Engines
//
// Engines implement CreateElement and Component. Optional capabilities
// (directives, filters, observation, feature flags) are discovered through
// the DirectiveRegistry, FilterRegistry, Observer and FeatureSupporter
// interfaces. The engines/zero package is a headless engine without
// reactivity; engines/markup supports functional components, re-rendering
// of mounted views and state snapshots signed or encrypted with an Encoder.
package cmpkit
