/*
Package plan defines the typed representation of a rendering plan.

# Overview

A plan is the versioned unit of work submitted for execution: a declarative
UI tree, an optional state machine, an optional embedded source module, and
the capability grants the plan needs at runtime. Plans may originate from an
untrusted generator, so this package holds pure data plus validation and no
behavior: anything that runs lives in the engine, resolver, and runtime
packages.

# Structure

  - Plan: the root document (id, version, specVersion, root, capabilities,
    state, imports, moduleManifest, source, metadata)
  - Node: closed variant over text, element, and component nodes
  - Action: declarative state mutation (set, increment, toggle, push)
  - ValueRef: literal or cross-reference ($from state/event/context/vars)
  - ModuleDescriptor: resolved URL plus optional integrity, version, signer

# Validation

Validate walks the whole document and returns a ValidationError naming the
first field that fails. Dotted paths reject __proto__, prototype, and
constructor segments at validation time as well as at application time.

Unrecognized specVersion tags are normalized to the current default rather
than rejected, so plans produced against older or foreign spec revisions
stay usable.
*/
package plan
