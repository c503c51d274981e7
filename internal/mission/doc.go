// Package mission defines the declarative description of a unit of work (a
// Mission made of Steps), the results produced by executing it, and the error
// kinds shared by every layer of the engine.
//
// Types in this package carry no behavior beyond validation. Scheduling lives
// in the dag and executor packages.
package mission
