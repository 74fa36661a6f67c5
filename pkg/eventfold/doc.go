/*
Package eventfold provides an event-sourcing substrate for multi-node
systems with no central coordinator. Independent nodes emit timestamped
events describing progress on shared entities; any node can later
reconstruct one canonical, reproducible state from the union of everything
emitted, regardless of network delay, duplicate delivery, or physical
arrival order.

# Overview

The pieces, leaves first:

  - event: immutable events carrying causal metadata (lamport clock,
    causation and correlation links) plus the canonical total order and
    duplicate removal every consumer relies on.
  - merge: deterministic conflict resolution for genuinely concurrent
    writes, and conflict-free merges for grow-only sets and counters.
  - dag: the causal parent/child graph with a dependency-respecting
    order that fails closed on cycles.
  - reduce: the generic fold engine every domain machine plugs into,
    with the strict/permissive anomaly policy.
  - workitem: the fully worked domain machine, a work-item lifecycle
    with guarded transitions.
  - schema, store, config, observability: payload validation, durable
    event/clock storage, configuration, and logging/metrics/tracing.

This package ties them together: a Producer stamps and persists new
events, and an Engine folds stored histories into frozen domain state.

# Basic Usage

	machine, err := workitem.NewMachine()
	if err != nil {
	    log.Fatal(err)
	}

	st := store.NewMemoryStore()
	engine := eventfold.NewEngine(machine, st)
	producer, err := eventfold.NewProducer(ctx, "node-a", st, st)
	if err != nil {
	    log.Fatal(err)
	}

	_, err = producer.Emit(ctx, workitem.EventTransition, "wp/WP-1",
	    map[string]any{"from": "none", "to": "planned"})
	if err != nil {
	    log.Fatal(err)
	}

	result, err := engine.Fold(ctx, "wp/WP-1")
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(result.State.Lane) // "planned"

# Determinism

Folds are pure functions of the stored event multiset: feeding the same
events in any order, with any duplication, yields an identical result.
That property is what lets disconnected nodes converge without talking
to each other.
*/
package eventfold
