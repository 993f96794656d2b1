package modulemanager

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"
)

// ModuleDependencyGraph represents the dependency relationships between modules
type ModuleDependencyGraph struct {
	nodes        map[string]*DependencyNode
	serviceGraph map[string]string // service name -> module ID that provides it
}

// DependencyNode represents a module in the dependency graph
type DependencyNode struct {
	ModuleID         string
	Module           Module
	Dependencies     []string // Module IDs this module depends on
	ProvidedServices []string
	RequiredServices []string
	visited          bool
	inStack          bool
}

// BuildDependencyGraph creates a dependency graph from the enabled modules.
// Service requirements are resolved to module dependencies.
func BuildDependencyGraph(modules map[string]Module, log hclog.Logger) (*ModuleDependencyGraph, error) {
	graph := &ModuleDependencyGraph{
		nodes:        make(map[string]*DependencyNode),
		serviceGraph: make(map[string]string),
	}

	for _, id := range sortedIDs(modules) {
		module := modules[id]
		node := &DependencyNode{ModuleID: id, Module: module}

		if depProvider, ok := module.(DependencyProvider); ok {
			node.Dependencies = append(node.Dependencies, depProvider.Dependencies()...)
		}

		if serviceProvider, ok := module.(ServiceProvider); ok {
			node.ProvidedServices = serviceProvider.ProvidedServices()
			for _, service := range node.ProvidedServices {
				if existingProvider, exists := graph.serviceGraph[service]; exists {
					return nil, fmt.Errorf("service '%s' is provided by multiple modules: %s and %s",
						service, existingProvider, id)
				}
				graph.serviceGraph[service] = id
			}
		}

		if serviceConsumer, ok := module.(ServiceConsumer); ok {
			node.RequiredServices = serviceConsumer.RequiredServices()
		}

		graph.nodes[id] = node
	}

	for _, id := range sortedIDs(modules) {
		node := graph.nodes[id]
		for _, requiredService := range node.RequiredServices {
			providerID, exists := graph.serviceGraph[requiredService]
			if !exists {
				return nil, fmt.Errorf("module %s requires service '%s' but no provider is enabled", id, requiredService)
			}
			if providerID != id {
				node.Dependencies = append(node.Dependencies, providerID)
				log.Debug("service dependency", "module", id, "provider", providerID, "service", requiredService)
			}
		}
		for _, depID := range node.Dependencies {
			if _, exists := graph.nodes[depID]; !exists {
				return nil, fmt.Errorf("module %s depends on non-existent module %s", id, depID)
			}
		}
	}

	if err := graph.detectCycles(); err != nil {
		return nil, err
	}

	return graph, nil
}

func (g *ModuleDependencyGraph) detectCycles() error {
	for _, id := range g.ids() {
		if !g.nodes[id].visited {
			if err := g.detectCyclesDFS(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *ModuleDependencyGraph) detectCyclesDFS(nodeID string, path []string) error {
	node := g.nodes[nodeID]
	node.visited = true
	node.inStack = true
	path = append(path, nodeID)

	for _, depID := range node.Dependencies {
		depNode := g.nodes[depID]
		if !depNode.visited {
			if err := g.detectCyclesDFS(depID, path); err != nil {
				return err
			}
			continue
		}
		if depNode.inStack {
			for i, id := range path {
				if id == depID {
					cyclePath := append(append([]string{}, path[i:]...), depID)
					return fmt.Errorf("circular dependency detected: %v", cyclePath)
				}
			}
		}
	}

	node.inStack = false
	return nil
}

// InitializationOrder returns modules dependencies-first. Ties are broken by
// module ID so startup logs are stable.
func (g *ModuleDependencyGraph) InitializationOrder() []Module {
	order := make([]Module, 0, len(g.nodes))
	visited := make(map[string]bool)

	var visit func(string)
	visit = func(nodeID string) {
		if visited[nodeID] {
			return
		}
		visited[nodeID] = true
		node := g.nodes[nodeID]
		for _, depID := range node.Dependencies {
			visit(depID)
		}
		order = append(order, node.Module)
	}

	for _, id := range g.ids() {
		visit(id)
	}
	return order
}

// ModuleDependencies returns the dependencies for a specific module
func (g *ModuleDependencyGraph) ModuleDependencies(moduleID string) ([]string, error) {
	node, exists := g.nodes[moduleID]
	if !exists {
		return nil, fmt.Errorf("module %s not found", moduleID)
	}
	return node.Dependencies, nil
}

func (g *ModuleDependencyGraph) ids() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedIDs(modules map[string]Module) []string {
	ids := make([]string, 0, len(modules))
	for id := range modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
