/*
Package loom is a schema-driven orchestration engine for multi-step
computations, each step typically a call to an LLM provider or a tool
subprocess, driven by a declaratively defined state machine.

Every transition carries a JSON Schema contract. The engine validates every
produced event against its resolved contract, feeds validation failures back
to the producer as corrective input, and terminates the machine through a
fatal bail-out path on unrecoverable conditions. Machines compose by
sequential chaining and by nested invocation from within a parent step.

# Usage

	reg := action.NewRegistry()
	reg.Register(llm.Name, llm.New())

	ctx := domain.NewContext()
	ctx.Actions = reg
	ctx.Client = langchain.New()

	inst, err := loom.Start(ctx, machine)
	if err != nil {
		log.Fatal(err)
	}
	defer inst.Stop()

	if err := inst.Submit(domain.NewEvent("start", "process", payload)); err != nil {
		log.Fatal(err)
	}
	res, err := inst.Await(30 * time.Second)

The machine's entry and exit schemas are computable without starting
anything via IOSchemas, and resolve identically before and during a run.
*/
package loom
