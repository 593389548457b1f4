/*
Package process materializes agents as external worker processes.

Runtimes are allow-listed in a runtimes file:

	runtimes:
	  - name: python-agent
	    command: python
	    args: [agents/run.py]
	    env:
	      LOG_FORMAT: json

An agent opts in by naming its runtime in its config block
(config: {runtime: python-agent}). The worker receives the agent definition
as HANDOFF_AGENT_* variables plus HANDOFF_AGENT_NODE (the node as JSON) and is
sent an interrupt when the conversation moves on.
*/
package process
