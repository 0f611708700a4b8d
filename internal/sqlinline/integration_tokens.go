package sqlinline

// QSelectIntegrationToken returns the stored API key of a provider.
const QSelectIntegrationToken = `--sql 3f1c9a72-8b4e-4d06-a5e1-7c2d9b0f4e58
select token
from integration_tokens
where provider = $1::text
  and token <> ''
limit 1;
`

// QUpsertIntegrationToken replaces the key of a provider. Properties hold
// provider options such as the preferred model.
const QUpsertIntegrationToken = `--sql 9d4e2b61-0c7a-4f38-b2d5-e81a6c3f7094
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
