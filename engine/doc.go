// Package engine provides the low-level wazero integration.
//
// This package wraps wazero behind three types:
//
//	Engine   - Creates and manages the wazero runtime and its caches
//	Module   - A compiled module, can verify imports and create instances
//	Instance - A running instance exposing functions and linear memory
//
// # Instantiation Flow
//
//  1. Engine.Compile() compiles and validates the module binary
//  2. Engine.InstantiateWASI() registers the WASI preview1 host module
//     when the module imports it
//  3. Module.Instantiate() verifies every function import resolves, then
//     instantiates; unsatisfied imports surface as a link error listing them
//  4. Instance exposes exported functions and the bound memory handle
//
// The engine owns the runtime context every call executes against and must
// outlive all modules and instances created from it.
package engine
