/*
Configurator reconciles the configuration of contracts deployed on several
networks against a YAML topology.

	configurator plan --config topology.yaml --rpc 30101=https://eth.example.org
	configurator report --config topology.yaml --mode full --format json
	configurator serve --config topology.yaml --store file:///var/lib/configurator

plan prints the diff table to stderr and the JSON plan to stdout. The
actions are never sent: signing and submission belong to a separate
executor.

With --continue-on-error entries on unreachable networks are skipped and
listed under "failures" instead of aborting the run.
*/
package main
