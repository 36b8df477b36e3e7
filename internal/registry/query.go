package registry

// Registry operations. Both take $graph, $variant and $hash; the registry
// picks the schema by hash when one is given, otherwise by variant.

const introspectionQuery = `query Introspective($graph: ID!, $variant: String, $hash: ID) {
  service(id: $graph) {
    schema(tag: $variant, hash: $hash) {
      introspection {
        queryType { name }
        mutationType { name }
        subscriptionType { name }
        types { ...FullType }
        directives {
          name
          locations
          args { ...InputValue }
        }
      }
    }
  }
}

fragment FullType on IntrospectionType {
  kind
  name
  fields {
    name
    args { ...InputValue }
    type { ...TypeRef }
    isDeprecated
    deprecationReason
  }
  inputFields { ...InputValue }
  interfaces { ...TypeRef }
  enumValues(includeDeprecated: true) {
    name
    isDeprecated
    deprecationReason
  }
  possibleTypes { ...TypeRef }
}

fragment InputValue on IntrospectionInputValue {
  name
  type { ...TypeRef }
  defaultValue
}

fragment TypeRef on IntrospectionType {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType {
                kind
                name
              }
            }
          }
        }
      }
    }
  }
}
`

const documentQuery = `query Document($graph: ID!, $variant: String, $hash: ID) {
  service(id: $graph) {
    schema(tag: $variant, hash: $hash) {
      document
    }
  }
}
`
