package sqlinline

const QInsertNovel = `--sql 2b7f1c3e-8a4d-4e0f-9c61-5d2a7e9b3f10
insert into novels (
    id, owner_id, title, parameters, drive_mode, stage, status,
    outline, chapters, chapter_count, current_chapter_index, last_error,
    created_at, updated_at
)
values ($1, $2, $3, $4::jsonb, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11, nullif($12, ''), $13, $14);
`

const QSelectNovel = `--sql 7c3e9a21-4b6f-4d8e-a0c5-1f9e2b7d6a34
select id, owner_id, title, parameters, drive_mode, stage, status,
       outline, chapters, chapter_count, current_chapter_index, coalesce(last_error, ''),
       created_at, updated_at
from novels
where id = $1;
`

// QUpdateNovelStage is the conditional write behind every stage: it only
// applies while the row still holds the stage the caller read. A chapter count
// that is already set is never overwritten.
const QUpdateNovelStage = `--sql 91d4b6e8-2c7a-4f3b-8e15-6a0c9d2f7b48
update novels
set stage = $3,
    status = $4,
    outline = $5::jsonb,
    chapters = $6::jsonb,
    chapter_count = case when chapter_count = 0 then $7 else chapter_count end,
    current_chapter_index = $8,
    last_error = nullif($9, ''),
    updated_at = $10
where id = $1
  and stage = $2
  and status <> 'error';
`

const QMarkNovelFailed = `--sql 4e8a2d7f-6b1c-4a9e-b3f0-8c5d1e7a2b96
update novels
set status = 'error',
    last_error = $3,
    lease_until = null,
    updated_at = now()
where id = $1
  and stage = $2
  and status not in ('completed', 'error');
`

const QDeleteNovel = `--sql c5a1e7b3-9d2f-4c6a-8b4e-0f3d7a9c1e52
delete from novels
where id = $1 and owner_id = $2;
`

const QMarkStaleNovels = `--sql 0d6f3b9a-5e2c-4b7d-9a18-3c7e1f5b8d24
update novels
set status = 'error',
    last_error = $2,
    lease_until = null,
    updated_at = now()
where status not in ('completed', 'error')
  and updated_at < $1;
`

// QClaimNextNovel leases the oldest idle server-driven novel. The lease does
// not bump updated_at so an abandoned claim still ages toward the stale sweep.
const QClaimNextNovel = `--sql 6a9c2e4f-1b7d-4e3a-8f05-2d8b6c0e9a71
with next_novel as (
    select id
    from novels
    where drive_mode = 'server'
      and status not in ('completed', 'error')
      and (lease_until is null or lease_until < now())
    order by updated_at asc
    for update skip locked
    limit 1
)
update novels
set lease_until = now() + make_interval(secs => $1)
where id in (select id from next_novel)
returning id, owner_id, title, parameters, drive_mode, stage, status,
          outline, chapters, chapter_count, current_chapter_index, coalesce(last_error, ''),
          created_at, updated_at;
`

const QRenewNovelLease = `--sql 5c7e9a1b-3d2f-4b8a-96e4-7a0c2f4d8b35
update novels
set lease_until = now() + make_interval(secs => $2)
where id = $1
  and lease_until is not null;
`

const QReleaseNovel = `--sql e2b8d4a6-7f3c-4d1e-a9b5-4c0f8e2d6a13
update novels
set lease_until = null
where id = $1;
`

// QCreateSchema provisions every table the service uses.
const QCreateSchema = `--sql 8f1a3c5e-2d4b-4e6f-9a7c-1b3d5f7e9a20
create table if not exists novels (
    id text primary key,
    owner_id text not null,
    title text not null,
    parameters jsonb not null,
    drive_mode text not null default 'server',
    stage text not null default 'pending',
    status text not null,
    outline jsonb not null default '{}'::jsonb,
    chapters jsonb not null default '[]'::jsonb,
    chapter_count integer not null default 0,
    current_chapter_index integer not null default 0,
    last_error text,
    lease_until timestamptz,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists novels_owner_idx on novels (owner_id, created_at desc);
create index if not exists novels_active_idx on novels (status, updated_at)
    where status not in ('completed', 'error');
create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
