/*
Package domain contains the core entities of a Tapestry document.

It defines the identity types, nodes, ports and connections that make up a task
flow graph, together with the error taxonomy shared by every layer. This package is
kept pure and free of I/O, history and presentation concerns.

# Key Entities

  - Node: a task step with a type tag, typed properties, a position and ports.
  - Port: an input or output connection point declared by the node's type.
  - Connection: a directed edge from an output port to an input port.
  - PortRef: the (node, port) pair a connection endpoint refers to.
*/
package domain
